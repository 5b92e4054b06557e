package service

import (
	"encoding/json"

	"inventory-assistant-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IChatEventPublisher interface {
	Publish(event dto.ChatEventMessage) error
}

type chatEventPublisher struct {
	topicName string
	publisher message.Publisher
}

func NewChatEventPublisher(topicName string, publisher message.Publisher) IChatEventPublisher {
	return &chatEventPublisher{topicName: topicName, publisher: publisher}
}

func (p *chatEventPublisher) Publish(event dto.ChatEventMessage) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("user_id", event.UserID)
	return p.publisher.Publish(p.topicName, msg)
}
