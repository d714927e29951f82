package bugs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"guildkeeper/internal/storage"
	"guildkeeper/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ModalID          = "bugReportModal"
	FieldTitle       = "bugTitle"
	FieldDescription = "bugDescription"
	FieldSteps       = "bugSteps"

	MaxTitleLength       = 100
	MaxDescriptionLength = 1000
	MaxStepsLength       = 1000

	NoSteps = "Not provided"
)

var (
	ErrNotFound     = errors.New("bug report not found")
	ErrMissingField = errors.New("title and description are required")
	ErrTooLong      = errors.New("field too long")
	ErrRateLimited  = errors.New("too many bug reports, try again later")
	ErrNoChannel    = errors.New("bug report channel is not configured")
)

type Store interface {
	GetBugData(ctx context.Context) (storage.BugData, error)
	UpdateBugData(ctx context.Context, fn func(*storage.BugData) error) error
}

type Submission struct {
	Title       string
	Description string
	Steps       string
	ReporterID  string
}

// Stats counts reports per status key.
type Stats struct {
	Total    int
	ByStatus map[string]int
}

// Percent returns the share of reports in status, rounded to a whole number.
func (s Stats) Percent(status string) int {
	if s.Total == 0 {
		return 0
	}
	return int(float64(s.ByStatus[status])/float64(s.Total)*100 + 0.5)
}

type Service struct {
	store          Store
	logger         *zap.Logger
	limiter        *utils.RateLimiter
	defaultChannel string
	now            func() time.Time
	newID          func() string
}

func NewService(store Store, logger *zap.Logger, defaultChannel string, limiter *utils.RateLimiter) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:          store,
		logger:         logger,
		limiter:        limiter,
		defaultChannel: defaultChannel,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// ChannelID returns the channel set with SetChannel, falling back to the
// configured default.
func (s *Service) ChannelID(ctx context.Context) (string, error) {
	data, err := s.store.GetBugData(ctx)
	if err != nil {
		return "", fmt.Errorf("load bug data: %w", err)
	}
	if data.ChannelID != "" {
		return data.ChannelID, nil
	}
	return s.defaultChannel, nil
}

// SetChannel stores the report channel. It reports false when the channel was
// already configured.
func (s *Service) SetChannel(ctx context.Context, channelID string) (bool, error) {
	current, err := s.ChannelID(ctx)
	if err != nil {
		return false, err
	}
	if current == channelID {
		return false, nil
	}
	err = s.store.UpdateBugData(ctx, func(data *storage.BugData) error {
		data.ChannelID = channelID
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("save bug channel: %w", err)
	}
	return true, nil
}

// Submit validates and stores a new report in the under review state.
func (s *Service) Submit(ctx context.Context, sub Submission) (storage.BugReport, error) {
	title := strings.TrimSpace(sub.Title)
	description := strings.TrimSpace(sub.Description)
	steps := strings.TrimSpace(sub.Steps)
	if title == "" || description == "" {
		return storage.BugReport{}, ErrMissingField
	}
	if utf8.RuneCountInString(title) > MaxTitleLength ||
		utf8.RuneCountInString(description) > MaxDescriptionLength ||
		utf8.RuneCountInString(steps) > MaxStepsLength {
		return storage.BugReport{}, ErrTooLong
	}
	if steps == "" {
		steps = NoSteps
	}

	now := s.now()
	if !s.limiter.Allow(sub.ReporterID, now) {
		return storage.BugReport{}, ErrRateLimited
	}

	report := storage.BugReport{
		ID:          s.newID(),
		Title:       title,
		Description: description,
		Steps:       steps,
		ReporterID:  sub.ReporterID,
		Status:      StatusUnderReview,
		Links:       utils.ExtractLinks(description + "\n" + steps),
		CreatedAt:   now,
	}
	err := s.store.UpdateBugData(ctx, func(data *storage.BugData) error {
		data.Reports[report.ID] = report
		return nil
	})
	if err != nil {
		return storage.BugReport{}, fmt.Errorf("save bug report: %w", err)
	}

	s.logger.Info("bug report submitted",
		zap.String("report_id", report.ID),
		zap.String("reporter_id", report.ReporterID),
		zap.Int("links", len(report.Links)),
	)
	return report, nil
}

// AttachMessage records where the report was posted.
func (s *Service) AttachMessage(ctx context.Context, reportID, channelID, messageID string) error {
	return s.store.UpdateBugData(ctx, func(data *storage.BugData) error {
		report, ok := data.Reports[reportID]
		if !ok {
			return ErrNotFound
		}
		report.ChannelID = channelID
		report.MessageID = messageID
		data.Reports[reportID] = report
		return nil
	})
}

// Discard removes a report that could not be posted.
func (s *Service) Discard(ctx context.Context, reportID string) error {
	return s.store.UpdateBugData(ctx, func(data *storage.BugData) error {
		delete(data.Reports, reportID)
		return nil
	})
}

func (s *Service) Get(ctx context.Context, reportID string) (storage.BugReport, error) {
	data, err := s.store.GetBugData(ctx)
	if err != nil {
		return storage.BugReport{}, fmt.Errorf("load bug data: %w", err)
	}
	report, ok := data.Reports[reportID]
	if !ok {
		return storage.BugReport{}, ErrNotFound
	}
	return report, nil
}

// Transition moves a report to statusKey on behalf of resolverID.
func (s *Service) Transition(ctx context.Context, reportID, statusKey, resolverID string) (storage.BugReport, Status, error) {
	status, err := Lookup(statusKey)
	if err != nil {
		return storage.BugReport{}, Status{}, err
	}

	var updated storage.BugReport
	err = s.store.UpdateBugData(ctx, func(data *storage.BugData) error {
		report, ok := data.Reports[reportID]
		if !ok {
			return ErrNotFound
		}
		now := s.now()
		report.Status = status.Key
		report.ResolvedBy = resolverID
		report.ResolvedAt = &now
		data.Reports[reportID] = report
		updated = report
		return nil
	})
	if err != nil {
		return storage.BugReport{}, Status{}, err
	}

	s.logger.Info("bug report status changed",
		zap.String("report_id", reportID),
		zap.String("status", status.Key),
		zap.String("resolver_id", resolverID),
	)
	return updated, status, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	data, err := s.store.GetBugData(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load bug data: %w", err)
	}
	stats := Stats{ByStatus: make(map[string]int, len(statuses))}
	for _, report := range data.Reports {
		stats.Total++
		stats.ByStatus[report.Status]++
	}
	return stats, nil
}

// PruneRateLimits forgets reporters with no submissions left in the window.
func (s *Service) PruneRateLimits(now time.Time) {
	s.limiter.Prune(now)
}
