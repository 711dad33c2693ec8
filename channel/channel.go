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
	"context"
	"encoding/json"
	"fmt"

	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	natsutil "github.com/kthomas/go-natsutil"
	uuid "github.com/kthomas/go.uuid"
	"github.com/provideplatform/bridge/artifact"
	"github.com/provideplatform/bridge/chain"
	"github.com/provideplatform/bridge/closing"
	"github.com/provideplatform/bridge/common"
	"github.com/provideplatform/bridge/zkp/providers"
	provide "github.com/provideplatform/provide-go/api"
)

const channelStatusIdle = "idle"
const channelStatusFailed = "failed"

// Channel is the registry record for a payment channel tracked by the
// bridge; Status mirrors the closing state machine while a close
// attempt is in flight
type Channel struct {
	provide.Model

	// ChannelID is the bytes32 channel identifier as registered on the bridge contract
	ChannelID *string `json:"channel_id"`

	Name        *string `json:"name"`
	Description *string `json:"description"`

	// ContractAddress optionally records the bridge contract the channel
	// was registered against, for deployments that track more than one
	ContractAddress *string `json:"contract_address,omitempty"`

	Status *string `sql:"not null;default:'idle'" json:"status"`
	TxHash *string `json:"tx_hash,omitempty"`

	// Associations
	ApplicationID  *uuid.UUID `sql:"type:uuid" json:"-"`
	OrganizationID *uuid.UUID `sql:"type:uuid" json:"-"`
	UserID         *uuid.UUID `sql:"type:uuid" json:"-"`
}

func (c *Channel) validate() bool {
	c.Errors = make([]*provide.Error, 0)

	if c.ChannelID == nil || *c.ChannelID == "" {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil("channel id required"),
		})
	} else {
		c.ChannelID = common.StringOrNil(common.NormalizeKey(*c.ChannelID))
	}

	return len(c.Errors) == 0
}

// Create persists the channel registry record
func (c *Channel) Create() bool {
	if !c.validate() {
		return false
	}

	db := dbconf.DatabaseConnection()

	if db.NewRecord(c) {
		result := db.Create(&c)
		rowsAffected := result.RowsAffected
		errors := result.GetErrors()
		if len(errors) > 0 {
			for _, err := range errors {
				c.Errors = append(c.Errors, &provide.Error{
					Message: common.StringOrNil(err.Error()),
				})
			}
		}
		if !db.NewRecord(c) {
			success := rowsAffected > 0
			if success {
				common.Log.Debugf("registered channel %s: %s", *c.ChannelID, c.ID)
			}
			return success
		}
	}

	return false
}

func (c *Channel) updateStatus(db *gorm.DB, status string, description *string) error {
	c.Status = common.StringOrNil(status)
	c.Description = description
	if !db.NewRecord(&c) {
		result := db.Save(&c)
		errors := result.GetErrors()
		if len(errors) > 0 {
			for _, err := range errors {
				c.Errors = append(c.Errors, &provide.Error{
					Message: common.StringOrNil(err.Error()),
				})
			}
			return errors[0]
		}
	}
	return nil
}

// requestClose enqueues an async close-channel attempt on behalf of
// the given caller; the consumer performs the leadership check when it
// reads the on-chain view
func (c *Channel) requestClose(caller string) bool {
	if c.Status != nil && *c.Status != channelStatusIdle && *c.Status != channelStatusFailed {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("channel close already in progress; status: %s", *c.Status)),
		})
		return false
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"channel_id": c.ID.String(),
		"caller":     caller,
	})

	_, err := natsutil.NatsJetstreamPublish(natsChannelCloseSubject, payload)
	if err != nil {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("failed to enqueue channel close; %s", err.Error())),
		})
		return false
	}

	return true
}

// close runs a single close-channel attempt end-to-end, persisting each
// state transition; returns the result or the terminal error
func (c *Channel) close(ctx context.Context, caller string) (*closing.Result, error) {
	db := dbconf.DatabaseConnection()

	contract, err := chain.Dial(
		ctx,
		common.DefaultJSONRPCURL,
		common.DefaultBridgeContractAddress,
		common.DefaultBridgeSignerKey,
		common.DefaultChainID,
	)
	if err != nil {
		c.updateStatus(db, channelStatusFailed, common.StringOrNil(err.Error()))
		return nil, err
	}

	engine := providers.ProofEngineProviderFactory(common.DefaultProofEngineProvider)
	if engine == nil {
		err = fmt.Errorf("failed to resolve proof engine provider: %s", common.DefaultProofEngineProvider)
		c.updateStatus(db, channelStatusFailed, common.StringOrNil(err.Error()))
		return nil, err
	}

	snapshots := artifact.NewClient(common.DefaultArtifactStoreBaseURL, nil)

	closer := closing.NewCloser(snapshots, contract, engine, func(status, description string) {
		c.updateStatus(db, status, common.StringOrNil(description))
	})

	result, err := closer.Close(ctx, *c.ChannelID, caller)
	if err != nil {
		return nil, err
	}

	c.TxHash = common.StringOrNil(result.TxHash)
	db.Save(&c)

	return result, nil
}
