/* SPDX-License-Identifier: Apache-2.0
 *
 * Copyright 2023 Damian Peckett <damian@pecke.tt>.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gpu-ninja/lumext/api"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// HeaderReplyToExchange names the exchange replies are published to.
	HeaderReplyToExchange = "replyToExchange"

	contentTypeJSON = "application/json"
)

// decodeDelivery decodes an inbound message. The body is a JSON array whose
// first element is the request and second the caller metadata. The returned
// delivery is never nil: on error it still carries the transport properties
// and whatever could be recovered of the request, so a reply can be sent.
func decodeDelivery(body []byte, correlationID, replyTo string, headers amqp.Table) (*api.Delivery, error) {
	delivery := &api.Delivery{
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
	}

	switch v := headers[HeaderReplyToExchange].(type) {
	case string:
		delivery.ReplyToExchange = v
	case []byte:
		delivery.ReplyToExchange = string(v)
	}

	if delivery.ReplyTo == "" {
		return delivery, errors.New("missing reply_to property")
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return delivery, fmt.Errorf("failed to decode message: %w", err)
	}

	if len(parts) < 2 {
		return delivery, fmt.Errorf("expected request and metadata, got %d elements", len(parts))
	}

	if err := json.Unmarshal(parts[0], &delivery.Request); err != nil {
		delivery.Request = salvageRequest(parts[0])
		return delivery, fmt.Errorf("failed to decode request: %w", err)
	}

	if err := json.Unmarshal(parts[1], &delivery.Metadata); err != nil {
		return delivery, fmt.Errorf("failed to decode metadata: %w", err)
	}

	return delivery, nil
}

// salvageRequest keeps the fields of a malformed request needed to address
// the error response: its id and the Accept header.
func salvageRequest(raw json.RawMessage) api.Request {
	var partial struct {
		ID      string                     `json:"id"`
		Headers map[string]json.RawMessage `json:"headers"`
	}

	// Best effort, a request too broken for this gets an empty id.
	_ = json.Unmarshal(raw, &partial)

	req := api.Request{ID: partial.ID}
	for name, value := range partial.Headers {
		var s string
		if json.Unmarshal(value, &s) == nil {
			if req.Headers == nil {
				req.Headers = make(map[string]string)
			}

			req.Headers[name] = s
		}
	}

	return req
}

func encodeReply(reply *api.Reply) (amqp.Publishing, error) {
	body, err := json.Marshal(reply.Response)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode reply: %w", err)
	}

	return amqp.Publishing{
		ContentType:   contentTypeJSON,
		CorrelationId: reply.CorrelationID,
		Body:          body,
	}, nil
}
