// Package worker provides async batch processing from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/profiler"
	"github.com/opensource-finance/kestrel/internal/store"
	"github.com/opensource-finance/kestrel/internal/validate"
)

// Worker consumes ingested batches from the EventBus and turns them into
// saved corridor profiles. A corridor without a current profile gets a fresh
// one; a corridor with one gets a blended refresh.
type Worker struct {
	bus          domain.EventBus
	profileStore domain.ProfileStore
	cache        domain.Cache
	generator    *profiler.Generator
	validator    *validate.Validator

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, profileStore domain.ProfileStore, cache domain.Cache, generator *profiler.Generator, validator *validate.Validator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:          bus,
		profileStore: profileStore,
		cache:        cache,
		generator:    generator,
		validator:    validator,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start subscribes to the batch ingestion topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicBatchIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicBatchIngested)
	return nil
}

// BatchMessage is the payload for batch processing.
type BatchMessage struct {
	CorridorCode string                  `json:"corridorCode"`
	Transactions []domain.TransactionRow `json:"transactions"`
	FraudLabels  []bool                  `json:"fraudLabels,omitempty"`

	// BlendFactor overrides the configured smoothing factor for refreshes.
	BlendFactor *float64 `json:"blendFactor,omitempty"`
}

// handleMessage processes one ingested batch end to end.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var batchMsg BatchMessage
	if err := json.Unmarshal(msg.Payload, &batchMsg); err != nil {
		slog.Error("failed to parse batch message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing batch",
		"corridor", batchMsg.CorridorCode,
		"transactions", len(batchMsg.Transactions),
	)

	// 1. Generate or refresh
	existing, err := w.profileStore.GetCurrent(ctx, batchMsg.CorridorCode)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("failed to load current profile",
			"corridor", batchMsg.CorridorCode,
			"error", err,
		)
		return err
	}

	var (
		profile  *domain.CorridorProfile
		warnings []string
	)
	if existing == nil {
		profile, warnings, err = w.generator.Generate(batchMsg.Transactions, batchMsg.CorridorCode, batchMsg.FraudLabels)
	} else {
		blendFactor := w.generator.BlendFactor()
		if batchMsg.BlendFactor != nil {
			blendFactor = *batchMsg.BlendFactor
		}
		profile, warnings, err = w.generator.Update(batchMsg.Transactions, existing, batchMsg.FraudLabels, blendFactor)
	}
	if err != nil {
		slog.Error("profile generation failed",
			"corridor", batchMsg.CorridorCode,
			"error", err,
		)
		return err
	}

	// 2. Validate; rejected batches are dropped, not retried
	var result domain.ValidationResult
	if existing == nil {
		result = w.validator.ValidateProfile(profile)
	} else {
		result = w.validator.ValidateUpdate(existing, profile)
		if drift := w.validator.DriftWarnings(existing, profile); len(drift) > 0 {
			w.publish(ctx, domain.TopicProfileDrift, map[string]any{
				"corridor_code": batchMsg.CorridorCode,
				"version":       profile.Version,
				"warnings":      drift,
			})
		}
	}
	if !result.IsValid() {
		slog.Warn("profile rejected by validation",
			"corridor", batchMsg.CorridorCode,
			"errors", result.Errors,
		)
		return nil
	}
	warnings = append(warnings, result.Warnings...)

	// 3. Save and invalidate
	version, err := w.profileStore.Save(ctx, profile)
	if err != nil {
		slog.Error("failed to save profile",
			"corridor", batchMsg.CorridorCode,
			"error", err,
		)
		return err
	}
	if w.cache != nil {
		_ = w.cache.InvalidateProfile(ctx, batchMsg.CorridorCode)
	}

	// 4. Publish result
	w.publish(ctx, domain.TopicProfileSaved, map[string]any{
		"corridor_code":     batchMsg.CorridorCode,
		"version":           version,
		"transaction_count": profile.TransactionCount,
	})

	slog.Info("batch processed",
		"corridor", batchMsg.CorridorCode,
		"version", version,
		"transactions", profile.TransactionCount,
		"warnings", len(warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// publish sends a JSON event, logging rather than failing the batch on error.
func (w *Worker) publish(ctx context.Context, topic string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := w.bus.Publish(ctx, topic, data); err != nil {
		slog.Error("failed to publish event",
			"topic", topic,
			"error", err,
		)
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
