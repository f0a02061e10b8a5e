package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"reunion-member-svc/src/internal/config"
	"reunion-member-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// ActivityPublisher publishes session activity messages to RabbitMQ.
type ActivityPublisher struct {
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

func NewActivityPublisher(cfg *config.Configuration, channel *amqp.Channel) *ActivityPublisher {
	return &ActivityPublisher{
		channel: channel,
		cfg:     &cfg.Queue.RabbitMQ,
	}
}

func (p *ActivityPublisher) PublishActivity(memberID, sessionID, serviceName, action string) error {
	return p.PublishActivityWithDetails(memberID, sessionID, serviceName, action, "", "")
}

// PublishActivityWithDetails publishes session activity with IP and UserAgent.
func (p *ActivityPublisher) PublishActivityWithDetails(memberID, sessionID, serviceName, action, ipAddress, userAgent string) error {
	message := models.ActivityMessage{
		MemberID:    memberID,
		SessionID:   sessionID,
		ServiceName: serviceName,
		Action:      action,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		Timestamp:   time.Now(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal activity message: %w", err)
	}

	err = p.channel.Publish(
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		logrus.WithError(err).Error("Failed to publish activity message")
		return fmt.Errorf("failed to publish activity message: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"member_id":   memberID,
		"session_id":  sessionID,
		"service":     serviceName,
		"action":      action,
		"exchange":    p.cfg.Exchange,
		"routing_key": p.cfg.RoutingKey,
	}).Debug("Activity message published")

	return nil
}
