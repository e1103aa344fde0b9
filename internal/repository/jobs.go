package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/doculab/extract/constants"
)

// Job is one row of extraction bookkeeping.
type Job struct {
	ID           string
	FileName     string
	ContentHash  string
	Format       string
	Handler      string
	Status       constants.JobStatus
	Chars        int
	Tables       int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

type JobRepository interface {
	Start(ctx context.Context, fileName, contentHash, format string) (*Job, error)
	FinishSuccess(ctx context.Context, jobID, handler string, chars, tables int) error
	FinishPartial(ctx context.Context, jobID, handler string, chars int, message string) error
	FinishFailure(ctx context.Context, jobID, message string) error
	Recent(ctx context.Context, limit int) ([]Job, error)
}

type jobRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewJobRepository(db *sql.DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

func (r *jobRepo) Start(ctx context.Context, fileName, contentHash, format string) (*Job, error) {
	job := &Job{
		ID:          uuid.NewString(),
		FileName:    fileName,
		ContentHash: contentHash,
		Format:      format,
		Status:      constants.JobStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO extraction_jobs (id, file_name, content_hash, format, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.FileName, job.ContentHash, job.Format, string(job.Status), job.StartedAt)
	if err != nil {
		r.log.Error("job start failed", "file", fileName, "err", err)
		return nil, err
	}
	r.log.Info("job started", "job_id", job.ID, "file", fileName, "format", format)
	return job, nil
}

func (r *jobRepo) FinishSuccess(ctx context.Context, jobID, handler string, chars, tables int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE extraction_jobs
		 SET status = ?, handler = ?, chars = ?, tables = ?, finished_at = ?
		 WHERE id = ?`,
		string(constants.JobStatusSucceeded), handler, chars, tables, time.Now().UTC(), jobID)
	if err != nil {
		r.log.Error("job finish(OK) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("job finished", "job_id", jobID, "handler", handler, "chars", chars)
	return nil
}

func (r *jobRepo) FinishPartial(ctx context.Context, jobID, handler string, chars int, message string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE extraction_jobs
		 SET status = ?, handler = ?, chars = ?, error_message = ?, finished_at = ?
		 WHERE id = ?`,
		string(constants.JobStatusPartial), handler, chars, message, time.Now().UTC(), jobID)
	if err != nil {
		r.log.Error("job finish(PARTIAL) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("job finished with degraded fields", "job_id", jobID, "handler", handler, "error", message)
	return nil
}

func (r *jobRepo) FinishFailure(ctx context.Context, jobID, message string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE extraction_jobs
		 SET status = ?, error_message = ?, finished_at = ?
		 WHERE id = ?`,
		string(constants.JobStatusFailed), message, time.Now().UTC(), jobID)
	if err != nil {
		r.log.Error("job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("job failed", "job_id", jobID, "error", message)
	return nil
}

func (r *jobRepo) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, file_name, content_hash, format, COALESCE(handler, ''), status,
		        chars, tables, COALESCE(error_message, ''), started_at, finished_at
		 FROM extraction_jobs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var status string
		var finished sql.NullTime
		if err := rows.Scan(&j.ID, &j.FileName, &j.ContentHash, &j.Format, &j.Handler,
			&status, &j.Chars, &j.Tables, &j.ErrorMessage, &j.StartedAt, &finished); err != nil {
			return nil, err
		}
		j.Status = constants.JobStatus(status)
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
