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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gpu-ninja/lumext/api"
	"github.com/gpu-ninja/lumext/internal/config"
	"github.com/gpu-ninja/lumext/internal/logging"
	"github.com/gpu-ninja/lumext/internal/util"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	heartbeat   = 4 * time.Second
	consumerTag = "lumext"
)

// Handler produces the reply to a delivery.
type Handler interface {
	Handle(ctx context.Context, delivery *api.Delivery) api.Reply
	// Fail produces the reply to a message that could not be decoded.
	Fail(ctx context.Context, delivery *api.Delivery, err error) api.Reply
}

// Worker consumes requests from RabbitMQ and publishes the replies.
type Worker struct {
	cfg     *config.RabbitMQ
	handler Handler
	logger  *zap.Logger
}

func NewWorker(cfg *config.RabbitMQ, handler Handler, logger *zap.Logger) *Worker {
	return &Worker{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
}

// URI returns the broker URI, including credentials.
func (w *Worker) URI() amqp.URI {
	scheme := "amqp"
	if w.cfg.UseSSL {
		scheme = "amqps"
	}

	return amqp.URI{
		Scheme:   scheme,
		Host:     w.cfg.Server,
		Port:     w.cfg.Port,
		Username: w.cfg.User,
		Password: w.cfg.Password,
		Vhost:    w.cfg.VHost,
	}
}

// Run consumes until ctx is cancelled or the connection is lost. Requests in
// flight when ctx is cancelled are completed and answered before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	uri := w.URI()
	logger := w.logger.With(zap.String("server", uri.Host), zap.Int("port", uri.Port),
		zap.String("exchange", w.cfg.Exchange), zap.String("queue", w.cfg.Queue))

	amqpConfig := amqp.Config{
		Heartbeat:  heartbeat,
		Vhost:      w.cfg.VHost,
		Properties: amqp.NewConnectionProperties(),
	}
	// Each instance shows up under its own name in the broker's connection list.
	amqpConfig.Properties.SetClientConnectionName(util.GenerateName(consumerTag))

	if w.cfg.UseSSL {
		amqpConfig.TLSClientConfig = &tls.Config{ServerName: w.cfg.Server}
	}

	conn, err := amqp.DialConfig(uri.String(), amqpConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(w.cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(w.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(w.cfg.Queue, w.cfg.RoutingKey, w.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := ch.Qos(w.cfg.MaxInFlight, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(w.cfg.Queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}

	logger.Info("Consuming requests")

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	pub := &publisher{ch: ch}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping consumer, waiting for requests in flight")

			if err := ch.Cancel(consumerTag, false); err != nil {
				logger.Warn("Failed to cancel consumer", zap.Error(err))
			}

			return nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("rabbitmq connection closed")
			}

			return fmt.Errorf("rabbitmq connection closed: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}

			wg.Add(1)
			go func() {
				defer wg.Done()

				// A shutdown must not abandon a request that is being processed.
				w.process(context.WithoutCancel(ctx), pub, &d)
			}()
		}
	}
}

// acknowledger is the part of amqp.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Reject(requeue bool) error
}

type replyPublisher interface {
	Publish(ctx context.Context, reply *api.Reply) error
}

func (w *Worker) process(ctx context.Context, pub replyPublisher, d *amqp.Delivery) {
	w.handle(ctx, pub, d, d.Body, d.CorrelationId, d.ReplyTo, d.Headers)
}

func (w *Worker) handle(ctx context.Context, pub replyPublisher, ack acknowledger, body []byte, correlationID, replyTo string, headers amqp.Table) {
	logger := w.logger.With(zap.String("correlation_id", correlationID))

	var reply api.Reply

	delivery, err := decodeDelivery(body, correlationID, replyTo, headers)
	if err != nil {
		if delivery.ReplyTo == "" {
			logger.Error("Rejecting undecodable message without reply_to", zap.Error(err))

			if err := ack.Reject(false); err != nil {
				logger.Warn("Failed to reject message", zap.Error(err))
			}

			return
		}

		logger.Error("Answering undecodable message", zap.Error(err))
		reply = w.handler.Fail(ctx, delivery, err)
	} else {
		reply = w.handler.Handle(ctx, delivery)
	}

	logging.Trivia(logger, "Publishing reply",
		zap.String("exchange", reply.ReplyToExchange),
		zap.String("routing_key", reply.ReplyTo),
		zap.Int("status", reply.Response.StatusCode))

	if err := pub.Publish(ctx, &reply); err != nil {
		logger.Error("Failed to publish reply", zap.Error(err))

		if err := ack.Reject(false); err != nil {
			logger.Warn("Failed to reject message", zap.Error(err))
		}

		return
	}

	if err := ack.Ack(false); err != nil {
		logger.Warn("Failed to acknowledge message", zap.Error(err))
	}
}

// publisher serializes publishing on the shared channel.
type publisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

func (p *publisher) Publish(ctx context.Context, reply *api.Reply) error {
	msg, err := encodeReply(reply)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, reply.ReplyToExchange, reply.ReplyTo, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish reply: %w", err)
	}

	return nil
}
