package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeSubscriptionActivated = "subscription.activated"
	EventTypeSubscriptionCanceled  = "subscription.canceled"
	EventTypeSubscriptionPastDue   = "subscription.past_due"
	EventTypeSurveySubmitted       = "survey.submitted"
	EventTypeManagerApproved       = "manager.approved"
)

type SubscriptionActivatedEvent struct {
	BaseEvent
	DealershipID   int64  `json:"dealership_id"`
	CustomerID     string `json:"customer_id"`
	SubscriptionID string `json:"subscription_id"`
	PayerEmail     string `json:"payer_email"`
}

func NewSubscriptionActivatedEvent(dealershipID int64, customerID, subscriptionID, payerEmail string) *SubscriptionActivatedEvent {
	return &SubscriptionActivatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSubscriptionActivated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"dealership_id":   dealershipID,
				"customer_id":     customerID,
				"subscription_id": subscriptionID,
				"payer_email":     payerEmail,
			},
		},
		DealershipID:   dealershipID,
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		PayerEmail:     payerEmail,
	}
}

type SubscriptionCanceledEvent struct {
	BaseEvent
	DealershipID int64      `json:"dealership_id"`
	EndsAt       *time.Time `json:"ends_at,omitempty"`
	AtPeriodEnd  bool       `json:"at_period_end"`
}

func NewSubscriptionCanceledEvent(dealershipID int64, endsAt *time.Time, atPeriodEnd bool) *SubscriptionCanceledEvent {
	return &SubscriptionCanceledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSubscriptionCanceled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"dealership_id": dealershipID,
				"at_period_end": atPeriodEnd,
			},
		},
		DealershipID: dealershipID,
		EndsAt:       endsAt,
		AtPeriodEnd:  atPeriodEnd,
	}
}

type SurveySubmittedEvent struct {
	BaseEvent
	DealershipID int64  `json:"dealership_id"`
	ResponseID   int64  `json:"response_id"`
	AccessCode   string `json:"access_code"`
}

func NewSurveySubmittedEvent(dealershipID, responseID int64, accessCode string) *SurveySubmittedEvent {
	return &SurveySubmittedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSurveySubmitted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"dealership_id": dealershipID,
				"response_id":   responseID,
			},
		},
		DealershipID: dealershipID,
		ResponseID:   responseID,
		AccessCode:   accessCode,
	}
}

type ManagerApprovedEvent struct {
	BaseEvent
	UserID     int64 `json:"user_id"`
	ApproverID int64 `json:"approver_id"`
}

func NewManagerApprovedEvent(userID, approverID int64) *ManagerApprovedEvent {
	return &ManagerApprovedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeManagerApproved,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":     userID,
				"approver_id": approverID,
			},
		},
		UserID:     userID,
		ApproverID: approverID,
	}
}
