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
	"sync"
	"time"

	dbconf "github.com/kthomas/go-db-config"
	natsutil "github.com/kthomas/go-natsutil"
	redisutil "github.com/kthomas/go-redisutil"
	uuid "github.com/kthomas/go.uuid"
	"github.com/nats-io/nats.go"
	"github.com/provideplatform/bridge/common"
)

const defaultNatsStream = "bridge"

const natsChannelCloseCompleteSubject = "bridge.channel.close.complete"
const natsChannelCloseFailedSubject = "bridge.channel.close.failed"

const natsChannelCloseSubject = "bridge.channel.close.pending"
const natsChannelCloseMaxInFlight = 32
const channelCloseAckWait = time.Hour * 1
const channelCloseMaxDeliveries = 1 // close attempts are single-shot; a failed attempt requires a new request

func init() {
	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("channel package consumer configured to skip NATS streaming subscription setup")
		return
	}

	redisutil.RequireRedis()

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(defaultNatsStream, []string{
		fmt.Sprintf("%s.>", defaultNatsStream),
	})

	var waitGroup sync.WaitGroup

	createNatsChannelCloseSubscriptions(&waitGroup)
}

func createNatsChannelCloseSubscriptions(wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			channelCloseAckWait,
			natsChannelCloseSubject,
			natsChannelCloseSubject,
			natsChannelCloseSubject,
			consumeChannelCloseMsg,
			channelCloseAckWait,
			natsChannelCloseMaxInFlight,
			channelCloseMaxDeliveries,
			nil,
		)
	}
}

func consumeChannelCloseMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during channel close; %s", r)
			msg.Term()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS channel close message on subject: %s", len(msg.Data), msg.Subject)

	params := map[string]interface{}{}
	err := json.Unmarshal(msg.Data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal channel close message; %s", err.Error())
		msg.Term()
		return
	}

	channelID, channelIDOk := params["channel_id"].(string)
	if !channelIDOk {
		common.Log.Warning("failed to unmarshal channel_id during close message handler")
		msg.Term()
		return
	}

	caller, callerOk := params["caller"].(string)
	if !callerOk {
		common.Log.Warning("failed to unmarshal caller during close message handler")
		msg.Term()
		return
	}

	db := dbconf.DatabaseConnection()

	channel := &Channel{}
	db.Where("id = ?", channelID).Find(&channel)

	if channel == nil || channel.ID == uuid.Nil {
		common.Log.Warningf("failed to resolve channel during async close; channel id: %s", channelID)
		msg.Term()
		return
	}

	// a close attempt holds the lock for its full duration; concurrent
	// close requests for the same channel fail fast rather than queue
	lockKey := fmt.Sprintf("bridge.channel.close.%s", *channel.ChannelID)
	err = redisutil.WithRedlock(lockKey, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), channelCloseAckWait)
		defer cancel()

		_, err := channel.close(ctx, caller)
		return err
	})

	if err != nil {
		common.Log.Warningf("close attempt failed for channel %s; %s", *channel.ChannelID, err.Error())
		natsutil.NatsJetstreamPublish(natsChannelCloseFailedSubject, msg.Data)
		msg.Term()
		return
	}

	common.Log.Debugf("close attempt completed for channel %s; tx: %s", *channel.ChannelID, *channel.TxHash)
	natsutil.NatsJetstreamPublish(natsChannelCloseCompleteSubject, msg.Data)
	msg.Ack()
}
