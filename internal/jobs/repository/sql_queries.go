package repository

const createJobQuery = `INSERT INTO jobs (job_id, kind, clip_id, platform, status, progress, priority,
		retry_count, max_retries, last_error, result_json, scheduled_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, 0, $6, 0, $7, '', '', $8, now(), now())
	RETURNING *`

const getJobByIDQuery = `SELECT * FROM jobs WHERE job_id = $1`

const getTotalJobsQuery = `SELECT COUNT(job_id) FROM jobs`

const listJobsQuery = `SELECT * FROM jobs ORDER BY created_at DESC OFFSET $1 LIMIT $2`

const listDueJobsQuery = `SELECT * FROM jobs
	WHERE status = 'queued' AND (scheduled_at IS NULL OR scheduled_at <= $1)
	ORDER BY priority ASC, created_at ASC
	LIMIT $2`

const claimJobQuery = `UPDATE jobs
	SET status = 'running', started_at = now(), updated_at = now()
	WHERE job_id = $1 AND status = 'queued'
	RETURNING *`

const updateProgressQuery = `UPDATE jobs
	SET progress = GREATEST(progress, $2), updated_at = now()
	WHERE job_id = $1 AND status = 'running'`

const completeJobQuery = `UPDATE jobs
	SET status = 'done', progress = 100, result_json = $2, last_error = '',
		completed_at = now(), updated_at = now()
	WHERE job_id = $1 AND status = 'running'`

const failJobQuery = `UPDATE jobs
	SET status = 'error', result_json = '', last_error = $2,
		completed_at = now(), updated_at = now()
	WHERE job_id = $1 AND status = 'running'`

const requeueJobQuery = `UPDATE jobs
	SET status = 'queued', progress = 0, retry_count = retry_count + 1,
		scheduled_at = $2, started_at = NULL, completed_at = NULL, updated_at = now()
	WHERE job_id = $1 AND status = 'error' AND retry_count < max_retries
	RETURNING *`

const cancelJobQuery = `UPDATE jobs
	SET status = 'cancelled', completed_at = now(), updated_at = now()
	WHERE job_id = $1 AND status IN ('queued', 'running')
	RETURNING *`

const getJobStatusQuery = `SELECT status FROM jobs WHERE job_id = $1`

const appendStageResultQuery = `INSERT INTO stage_results (job_id, fingerprint, stage, scope,
		artifacts, provider, fallback_used, duration_ms, success, message, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	RETURNING *`

const listStageResultsQuery = `SELECT * FROM stage_results WHERE job_id = $1 ORDER BY id ASC`

const getStageResultQuery = `SELECT * FROM stage_results
	WHERE fingerprint = $1 AND stage = $2 AND scope = $3 AND success = TRUE
	ORDER BY id DESC LIMIT 1`

const createClipQuery = `INSERT INTO clips (clip_id, source_path, local_path, remote_file_id,
		duration_sec, file_size_bytes, fingerprint, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	ON CONFLICT (fingerprint) DO UPDATE SET duration_sec = EXCLUDED.duration_sec,
		file_size_bytes = EXCLUDED.file_size_bytes
	RETURNING *`

const getClipByIDQuery = `SELECT * FROM clips WHERE clip_id = $1`

const getClipByFingerprintQuery = `SELECT * FROM clips WHERE fingerprint = $1`

const createReceiptQuery = `INSERT INTO publish_receipts (receipt_id, clip_id, platform, external_id,
		upload_url, clip_path, title, caption, hashtags, dry_run, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	RETURNING *`

const getReceiptQuery = `SELECT * FROM publish_receipts
	WHERE clip_id = $1 AND platform = $2
	ORDER BY created_at DESC LIMIT 1`
