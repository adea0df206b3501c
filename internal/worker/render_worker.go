package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	PollTimeout = 1 * time.Second // Must be >= 1s to satisfy Redis

	// maxRenderAttempts bounds requeues of a job whose certificate keeps
	// failing to render; the download path still renders lazily.
	maxRenderAttempts = 3
)

// RenderWorker drains the certificate render queue and writes PDF
// artifacts. Certificates stay valid whether or not their render ever
// succeeds; this worker only makes the first download fast.
type RenderWorker struct {
	certService *service.CertificateService
	certs       service.CertificateStore
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewRenderWorker creates a new RenderWorker.
func NewRenderWorker(certService *service.CertificateService, certs service.CertificateStore, rdb *redis.Client, log zerolog.Logger) *RenderWorker {
	return &RenderWorker{
		certService: certService,
		certs:       certs,
		rdb:         rdb,
		log:         log.With().Str("component", "render_worker").Logger(),
	}
}

type renderJob struct {
	CertificateID string `json:"certificate_id"`
	Attempts      int    `json:"attempts,omitempty"`
}

// Start runs the worker loop until the context is cancelled.
func (w *RenderWorker) Start(ctx context.Context) {
	w.log.Info().Msg("RenderWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("RenderWorker stopping")
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.RenderCertificatesQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // Queue empty
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job renderJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed job")
			continue
		}

		w.process(ctx, &job)
	}
}

func (w *RenderWorker) process(ctx context.Context, job *renderJob) {
	certID, err := uuid.Parse(job.CertificateID)
	if err != nil {
		w.log.Error().Str("certificate_id", job.CertificateID).Msg("Dropping job with invalid UUID")
		return
	}

	cert, err := w.certs.GetByID(ctx, certID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			w.log.Warn().Str("certificate_id", job.CertificateID).Msg("Certificate gone, dropping job")
			return
		}
		w.requeue(ctx, job)
		return
	}
	if cert.PDFPath != "" {
		return // Already rendered, nothing to do
	}

	if _, err := w.certService.RenderNow(ctx, cert); err != nil {
		w.log.Error().Err(err).Str("certificate", cert.Number).Msg("Render failed")
		w.requeue(ctx, job)
		return
	}

	w.log.Info().Str("certificate", cert.Number).Msg("Certificate rendered")
}

func (w *RenderWorker) requeue(ctx context.Context, job *renderJob) {
	job.Attempts++
	if job.Attempts >= maxRenderAttempts {
		w.log.Error().
			Str("certificate_id", job.CertificateID).
			Int("attempts", job.Attempts).
			Msg("Giving up on render job, download will render lazily")
		return
	}

	data, _ := json.Marshal(job)
	if err := w.rdb.RPush(ctx, config.WorkerKey.RenderCertificatesQueue, data).Err(); err != nil {
		w.log.Error().Err(err).Msg("Failed to requeue render job")
		return
	}
	// Avoid thrashing if rendering is failing hard.
	time.Sleep(2 * time.Second)
}
