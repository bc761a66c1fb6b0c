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

package api

// Request is the HTTP-shaped request a vCloud Director cell forwards to an
// API extension over the message bus.
type Request struct {
	// ID identifies the request; it is echoed back in the response.
	ID string `json:"id"`
	// Method is the HTTP method of the original call (GET, POST, PUT, DELETE).
	Method string `json:"method"`
	// RequestURI is the path of the original call, eg. /api/org/<tenant>/lumext/user/<login>.
	RequestURI string `json:"requestUri"`
	// QueryString is the raw query string of the original call (if any).
	QueryString string `json:"queryString,omitempty"`
	// Headers are the HTTP headers of the original call.
	Headers map[string]string `json:"headers,omitempty"`
	// Body is the base64 encoded body of the original call.
	Body string `json:"body,omitempty"`
}

// Metadata describes the caller of a forwarded request.
type Metadata struct {
	// User is the URN of the calling user (urn:vcloud:user:<uuid>).
	User string `json:"user"`
	// Rights are the URNs of the rights granted to the calling user.
	Rights []string `json:"rights,omitempty"`
	// Org is the URN of the organization of the calling user.
	Org string `json:"org,omitempty"`
}

// Delivery is a decoded inbound message together with the transport
// properties needed to route the reply back to the requester.
type Delivery struct {
	Request  Request
	Metadata Metadata
	// CorrelationID must be set unchanged on the reply.
	CorrelationID string
	// ReplyTo is the routing key of the reply.
	ReplyTo string
	// ReplyToExchange is the exchange the reply is published to.
	ReplyToExchange string
}

// Response is the HTTP-shaped response sent back to the vCloud Director cell.
type Response struct {
	// ID is the ID of the request this is a response to.
	ID string `json:"id"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"statusCode"`
	// Headers are the HTTP headers of the response.
	Headers map[string]string `json:"headers,omitempty"`
	// Body is the base64 encoded JSON body of the response.
	Body string `json:"body"`
}

// Reply is a response addressed to the requester of a delivery.
type Reply struct {
	Response        Response
	CorrelationID   string
	ReplyTo         string
	ReplyToExchange string
}
