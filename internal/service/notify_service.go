package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"rentalstation/internal/config"
	"rentalstation/internal/entities"
	"rentalstation/internal/repository"
)

//go:embed templates/rental_receipt.html
var templatesFS embed.FS

var receiptTemplate = template.Must(template.ParseFS(templatesFS, "templates/rental_receipt.html"))

const (
	notifyTimeout = 10 * time.Second
	timeLayout    = "02 Jan 2006 15:04 MST"
)

type emailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type smsClient interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// NotifyService sends rental receipts by e-mail and SMS. Either channel is skipped when it is not configured.
type NotifyService struct {
	users repository.UserRepository

	email     emailClient
	fromEmail string
	fromName  string

	sms        smsClient
	fromNumber string
}

func NewNotifyService(users repository.UserRepository, sg config.SendGrid, tw config.Twilio) *NotifyService {
	s := &NotifyService{users: users, fromEmail: sg.FromEmail, fromName: sg.FromName, fromNumber: tw.FromNumber}

	if sg.APIKey != "" && sg.FromEmail != "" {
		s.email = sendgrid.NewSendClient(sg.APIKey)
	} else {
		logrus.Warn("SendGrid is not configured, rental receipts will not be e-mailed")
	}

	if tw.AccountSID != "" && tw.AuthToken != "" && tw.FromNumber != "" {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   tw.AccountSID,
			Password:   tw.AuthToken,
			AccountSid: tw.AccountSID,
		})
		s.sms = client.Api
	} else {
		logrus.Warn("Twilio is not configured, rental receipts will not be sent by SMS")
	}
	return s
}

// RentalApproved never fails the caller; delivery problems are only logged.
func (s *NotifyService) RentalApproved(ctx context.Context, receipt entities.RentalReceipt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	log := logrus.WithFields(logrus.Fields{"paymentId": receipt.PaymentID, "userId": receipt.UserEmail})

	if s.email != nil {
		if err := s.sendReceiptEmail(ctx, receipt); err != nil {
			log.WithError(err).Warn("Rental receipt e-mail failed")
		}
	}

	if s.sms != nil && s.users != nil {
		user, err := s.users.GetByEmail(ctx, receipt.UserEmail)
		switch {
		case err != nil:
			log.WithError(err).Warn("Could not look up user for rental SMS")
		case user == nil || user.Phone == "":
		default:
			if err := s.sendSMS(user.Phone, receiptSMS(receipt)); err != nil {
				log.WithError(err).Warn("Rental receipt SMS failed")
			}
		}
	}
}

func (s *NotifyService) sendReceiptEmail(ctx context.Context, r entities.RentalReceipt) error {
	var html bytes.Buffer
	err := receiptTemplate.Execute(&html, map[string]interface{}{
		"ItemName":  r.ItemName,
		"StationID": r.StationID,
		"OrderID":   r.OrderID,
		"PaymentID": r.PaymentID,
		"Amount":    r.Amount,
		"Start":     r.StartTime.Format(timeLayout),
		"End":       r.EndTime.Format(timeLayout),
		"Year":      r.StartTime.Year(),
	})
	if err != nil {
		return fmt.Errorf("error rendering receipt: %w", err)
	}

	subject := fmt.Sprintf("Your rental of %s has started", r.ItemName)
	plain := fmt.Sprintf(
		"Your rental has started.\n\nItem: %s\nStation: %s\nOrder: %s\nPayment: %s\nAmount: %d\nStart: %s\nReturn by: %s\n",
		r.ItemName, r.StationID, r.OrderID, r.PaymentID, r.Amount,
		r.StartTime.Format(timeLayout), r.EndTime.Format(timeLayout),
	)

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", r.UserEmail)
	message := mail.NewSingleEmail(from, subject, to, plain, html.String())

	resp, err := s.email.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *NotifyService) sendSMS(to, body string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.fromNumber)
	params.SetBody(body)

	resp, err := s.sms.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		logrus.WithField("sid", *resp.Sid).Debug("Rental SMS sent")
	}
	return nil
}

func receiptSMS(r entities.RentalReceipt) string {
	return fmt.Sprintf("Rental started: %s. Return by %s. Payment %s.",
		r.ItemName, r.EndTime.Format(timeLayout), r.PaymentID)
}
