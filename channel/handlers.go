/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package channel

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"
	provide "github.com/provideplatform/provide-go/common"
	"github.com/provideplatform/provide-go/common/util"
)

func resolveChannelsQuery(db *gorm.DB, channelID, orgID, appID, userID *uuid.UUID) *gorm.DB {
	query := db.Select("channels.*")
	if channelID != nil {
		query = query.Where("channels.id = ?", channelID)
	}
	if orgID != nil {
		query = query.Where("channels.organization_id = ?", orgID)
	}
	if appID != nil {
		query = query.Where("channels.application_id = ?", appID)
	}
	if userID != nil {
		query = query.Where("channels.user_id = ?", userID)
	}
	return query
}

// InstallAPI registers the channel registry API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.GET("/api/v1/channels", listChannelsHandler)
	r.POST("/api/v1/channels", createChannelHandler)
	r.GET("/api/v1/channels/:id", channelDetailsHandler)

	r.POST("/api/v1/channels/:id/close", closeChannelHandler)
}

// list/query registered channels
func listChannelsHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	query := resolveChannelsQuery(db, nil, orgID, appID, userID)

	var channels []*Channel
	provide.Paginate(c, query, &Channel{}).Find(&channels)
	provide.Render(channels, 200, c)
}

// register a channel
func createChannelHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	channel := &Channel{}
	err = json.Unmarshal(buf, channel)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	if appID != nil {
		channel.ApplicationID = appID
	}

	if orgID != nil {
		channel.OrganizationID = orgID
	}

	if userID != nil {
		channel.UserID = userID
	}

	if channel.Create() {
		provide.Render(channel, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = channel.Errors
		provide.Render(obj, 422, c)
	}
}

// fetch channel details
func channelDetailsHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	channelID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	channel := &Channel{}
	resolveChannelsQuery(db, &channelID, orgID, appID, userID).Find(&channel)

	if channel == nil || channel.ID == uuid.Nil {
		provide.RenderError("channel not found", 404, c)
		return
	}

	provide.Render(channel, 200, c)
}

// enqueue an async close-channel attempt; the caller address must be
// the channel leader or the attempt fails when the consumer reads the
// on-chain view
func closeChannelHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	var params map[string]interface{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	caller, callerOk := params["caller"].(string)
	if !callerOk || caller == "" {
		provide.RenderError("caller address required to close channel", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	channelID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	channel := &Channel{}
	resolveChannelsQuery(db, &channelID, orgID, appID, userID).Find(&channel)
	if channel == nil || channel.ID == uuid.Nil {
		provide.RenderError("channel not found", 404, c)
		return
	}

	if channel.requestClose(caller) {
		provide.Render(channel, 202, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = channel.Errors
		provide.Render(obj, 422, c)
	}
}
