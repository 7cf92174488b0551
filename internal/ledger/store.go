package ledger

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/domain"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/cache"
	sqlpkg "github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/sql"
	apperrors "github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/logger"
	"gorm.io/gorm"
)

// Store is the durable record of seen envelopes and their cached replies,
// fronted by a Cache accelerator.
type Store struct {
	db        sqlpkg.SQL
	accel     cache.Cache
	freshness time.Duration
	tracer    trace.Tracer
}

// New builds a Store over db (the relational ledger) and accel (the
// Redis-backed fast path). freshness is how old a CachedReply may be and
// still count as fresh (spec's cache.freshnessSec, a 1h default window).
func New(db sqlpkg.SQL, accel cache.Cache, freshness time.Duration) *Store {
	return &Store{db: db, accel: accel, freshness: freshness, tracer: otel.Tracer("internal/ledger")}
}

// Migrate creates/updates the three ledger tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Get(ctx).AutoMigrate(&Payload{}, &CachedReply{}, &Rate{})
}

// cacheKey is the Redis key for an envelope's CachedReply.
func cacheKey(envelope domain.Envelope) string { return "reply:" + string(envelope) }

// Lookup returns the reply on file for kind/argument if one exists and is
// fresh enough (and covers every code the request needs). fresh=false with
// a nil error means "no usable cached reply"; the caller must fall
// through to the fetch path.
func (s *Store) Lookup(ctx context.Context, kind domain.Kind, argument string) (reply domain.Reply, fresh bool, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Lookup", trace.WithAttributes(
		attribute.String("ledger.kind", string(kind)),
		attribute.String("ledger.argument", argument),
	))
	defer span.End()

	envelope := domain.NewEnvelope(kind, argument)
	wantedCodes := domain.Codes(kind, argument)

	var cached CachedReply
	if err := s.accel.Get(ctx, cacheKey(envelope), &cached); err == nil {
		if r, ok := s.asFreshReply(cached, wantedCodes); ok {
			span.SetAttributes(attribute.Bool("ledger.hit", true), attribute.String("ledger.source", "accelerator"))
			span.SetStatus(codes.Ok, "fresh from accelerator")
			return r, true, nil
		}
	} else if !apperrors.Is(err, apperrors.CodeNotFound) {
		logger.L().WarnContext(ctx, "ledger: accelerator read failed, falling back to sql", "error", err)
	}

	var row CachedReply
	res := s.db.Get(ctx).Where("envelope = ?", string(envelope)).First(&row)
	if res.Error != nil {
		span.SetAttributes(attribute.Bool("ledger.hit", false))
		span.SetStatus(codes.Ok, "no cached reply on file")
		return domain.Reply{}, false, nil
	}

	if r, ok := s.asFreshReply(row, wantedCodes); ok {
		if err := s.accel.Set(ctx, cacheKey(envelope), row, s.freshness); err != nil {
			logger.L().WarnContext(ctx, "ledger: failed to warm accelerator", "error", err)
		}
		span.SetAttributes(attribute.Bool("ledger.hit", true), attribute.String("ledger.source", "sql"))
		span.SetStatus(codes.Ok, "fresh from sql")
		return r, true, nil
	}
	span.SetAttributes(attribute.Bool("ledger.hit", false))
	span.SetStatus(codes.Ok, "cached reply stale or incomplete")
	return domain.Reply{}, false, nil
}

// asFreshReply decodes row's body and checks both the TTL window and the
// code-set containment invariant (spec §4/§8): a cached reply only answers
// a request if it is within the freshness window AND its rates are a
// superset of the codes the request names.
func (s *Store) asFreshReply(row CachedReply, codes []string) (domain.Reply, bool) {
	if time.Since(row.FetchedAt) > s.freshness {
		return domain.Reply{}, false
	}
	var reply domain.Reply
	if err := json.Unmarshal(row.Body, &reply); err != nil {
		return domain.Reply{}, false
	}
	if !reply.ContainsAll(codes) {
		return domain.Reply{}, false
	}
	return reply.Project(codes), true
}

// PayloadExists reports whether envelope has ever been fetched, per the
// request-side handler's "payload presence" check (spec §4.4 step 5).
func (s *Store) PayloadExists(ctx context.Context, envelope domain.Envelope) (bool, error) {
	var count int64
	if err := s.db.Get(ctx).Model(&Payload{}).Where("envelope = ?", string(envelope)).Count(&count).Error; err != nil {
		return false, apperrors.Wrap(err, "failed to check payload presence")
	}
	return count > 0, nil
}

// TouchPayload stamps an existing payload row's RepliedAt to now, ahead of
// a republish onto fetch for a stale or containment-failing entry (spec
// §4.4 step 6, Δ ≥ 1h branch).
func (s *Store) TouchPayload(ctx context.Context, kind domain.Kind, argument string) error {
	envelope := domain.NewEnvelope(kind, argument)
	err := s.db.Get(ctx).Model(&Payload{}).Where("envelope = ?", string(envelope)).
		Update("replied_at", time.Now()).Error
	if err != nil {
		return apperrors.Wrap(err, "failed to touch payload")
	}
	return nil
}

// Record persists reply as the current answer for kind/argument: one
// Payload row (the envelope seen), one CachedReply row (the reply body and
// its code set), the flattened Rate rows, and a warm accelerator entry.
// fetchedAt is stamped by the caller (the fetch-side handler), never
// computed here, so tests can control it.
func (s *Store) Record(ctx context.Context, kind domain.Kind, argument string, reply domain.Reply, fetchedAt time.Time) error {
	envelope := domain.NewEnvelope(kind, argument)

	body, err := json.Marshal(reply)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal reply")
	}

	codes := make([]string, 0, len(reply.Rates))
	for code := range reply.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	cachedRow := CachedReply{
		Envelope:     string(envelope),
		BaseCurrency: reply.BaseCurrency,
		Codes:        strings.Join(codes, ","),
		Body:         body,
		FetchedAt:    fetchedAt,
	}

	err = s.db.Get(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&Payload{
			Envelope:  string(envelope),
			Kind:      string(kind),
			Argument:  argument,
			RepliedAt: fetchedAt,
		}).Error; err != nil {
			return err
		}
		if err := tx.Save(&cachedRow).Error; err != nil {
			return err
		}
		rates := make([]Rate, 0, len(reply.Rates))
		for code, value := range reply.Rates {
			rates = append(rates, Rate{
				BaseCurrency: reply.BaseCurrency,
				Code:         code,
				Value:        value,
				Date:         reply.Date,
				FetchedAt:    fetchedAt,
			})
		}
		if len(rates) > 0 {
			if err := tx.Create(&rates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to record ledger entry")
	}

	if err := s.accel.Set(ctx, cacheKey(envelope), cachedRow, s.freshness); err != nil {
		logger.L().WarnContext(ctx, "ledger: failed to warm accelerator after record", "error", err)
	}
	return nil
}
