package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/internal/models"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
	"github.com/noah-isme/academic-repo-api/pkg/jobs"
	"github.com/noah-isme/academic-repo-api/pkg/mailer"
)

// ApprovalFanOutJob is the job type that broadcasts an approved resource.
const ApprovalFanOutJob = "resource.approval.fanout"

type recipientRepository interface {
	ListActiveRecipients(ctx context.Context) ([]models.Recipient, error)
}

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// NotificationConfig tunes the approval broadcast.
type NotificationConfig struct {
	BatchSize  int
	BatchDelay time.Duration
	AppURL     string
}

// NotificationService serves in-app notifications and broadcasts approvals by email.
type NotificationService struct {
	recipients    recipientRepository
	notifications notificationRepository
	mailer        mailer.Mailer
	metrics       *MetricsService
	logger        *zap.Logger
	cfg           NotificationConfig
	sleep         func(time.Duration)
}

// NewNotificationService constructs the service.
func NewNotificationService(recipients recipientRepository, notifications notificationRepository, m mailer.Mailer, metrics *MetricsService, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	return &NotificationService{
		recipients:    recipients,
		notifications: notifications,
		mailer:        m,
		metrics:       metrics,
		logger:        logger,
		cfg:           cfg,
		sleep:         time.Sleep,
	}
}

// NotifyApproval emails every active user about an approved resource. Users
// are addressed in BCC batches with a fixed pause between consecutive
// batches. A failed batch is logged and skipped; only loading the recipient
// list can fail the call.
func (s *NotificationService) NotifyApproval(ctx context.Context, res *models.Resource) (*models.FanOutResult, error) {
	if res == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resource is required")
	}
	recipients, err := s.recipients.ListActiveRecipients(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification recipients")
	}

	addresses := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if email := strings.TrimSpace(r.Email); email != "" {
			addresses = append(addresses, email)
		}
	}

	result := &models.FanOutResult{Success: true, UsersNotified: len(addresses)}
	subject, body := s.approvalMessage(res)
	batches := chunkStrings(addresses, s.cfg.BatchSize)
	for i, batch := range batches {
		if i > 0 && s.cfg.BatchDelay > 0 {
			s.sleep(s.cfg.BatchDelay)
		}
		result.Batches++
		sendErr := s.mailer.Send(ctx, mailer.Message{Bcc: batch, Subject: subject, Text: body})
		s.metrics.RecordFanOutBatch(len(batch), sendErr)
		if sendErr != nil {
			result.FailedBatches++
			s.logger.Warn("approval notification batch failed",
				zap.String("resource_id", res.ID),
				zap.Int("batch", i+1),
				zap.Int("recipients", len(batch)),
				zap.Error(sendErr))
		}
	}

	s.confirmBroadcast(ctx, res, result)

	s.logger.Info("approval notification sent",
		zap.String("resource_id", res.ID),
		zap.Int("users_notified", result.UsersNotified),
		zap.Int("batches", result.Batches),
		zap.Int("failed_batches", result.FailedBatches))
	return result, nil
}

// confirmBroadcast tells the uploader how many users were addressed.
func (s *NotificationService) confirmBroadcast(ctx context.Context, res *models.Resource, result *models.FanOutResult) {
	if res.UploadedBy == nil || *res.UploadedBy == "" || s.notifications == nil {
		return
	}
	resourceID := res.ID
	n := &models.Notification{
		UserID:     *res.UploadedBy,
		ResourceID: &resourceID,
		Type:       models.NotificationSystem,
		Message:    fmt.Sprintf("%q was announced to %d users.", res.Title, result.UsersNotified),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.Warn("failed to record broadcast confirmation", zap.String("resource_id", res.ID), zap.Error(err))
	}
}

// HandleJob processes queued approval broadcasts.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != ApprovalFanOutJob {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	res, ok := job.Payload.(*models.Resource)
	if !ok || res == nil {
		return fmt.Errorf("invalid payload for %s", job.Type)
	}
	_, err := s.NotifyApproval(ctx, res)
	return err
}

func (s *NotificationService) approvalMessage(res *models.Resource) (string, string) {
	subject := fmt.Sprintf("New %s available: %s", strings.ReplaceAll(string(res.Type), "-", " "), res.Title)
	var b strings.Builder
	fmt.Fprintf(&b, "A new resource has been approved and is now available in the repository.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", res.Title)
	fmt.Fprintf(&b, "Type: %s\n", res.Type)
	if res.Department != "" {
		fmt.Fprintf(&b, "Department: %s\n", res.Department)
	}
	if base := strings.TrimRight(s.cfg.AppURL, "/"); base != "" {
		fmt.Fprintf(&b, "\nOpen it at %s/resources/%s\n", base, res.ID)
	}
	return subject, b.String()
}

// List returns the caller's notifications.
func (s *NotificationService) List(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	items, total, err := s.notifications.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// UnreadCount returns how many notifications the user has not read.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.notifications.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}

// MarkAllRead flags every unread notification of the user.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	return updated, nil
}

func chunkStrings(items []string, size int) [][]string {
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
