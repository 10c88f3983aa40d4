package sqlinline

const QInsertJob = `--sql 5ed7f2cd-6cc3-4e88-bf7f-309b39b0529e
insert into jobs(
    id, order_id, account_id, type, status, payload,
    attempts, max_attempts, cost_units, idempotency_key,
    scheduled_for, timeout_seconds, created_at, updated_at
)
values (
    $1::uuid, $2::uuid, $3::uuid, $4::text, 'queued', $5::jsonb,
    0, $6::int, $7::int, nullif($8::text, ''),
    $9::timestamptz, $10::int, now(), now()
);
`

// QClaimJobs atomically claims the oldest runnable jobs. SKIP LOCKED keeps
// overlapping dispatcher ticks from blocking on each other, and the
// conditional update guarantees a single winner per job.
const QClaimJobs = `--sql 5fe9c683-ebd0-43fd-bb8d-aab0e62e6fd8
with candidates as (
    select id
    from jobs
    where status = 'queued'
      and (scheduled_for is null or scheduled_for <= now())
    order by created_at asc
    for update skip locked
    limit $1
)
update jobs j
set status = 'running',
    claimed_at = now(),
    attempts = j.attempts + 1,
    updated_at = now()
where j.id in (select id from candidates)
  and j.status = 'queued'
returning j.id, j.order_id, j.account_id, j.type, j.payload,
          j.attempts, j.max_attempts, j.cost_units, j.claimed_at;
`

// QCompleteJob only lands if the row still carries the caller's claim, so a
// late write from a reclaimed job is a no-op.
const QCompleteJob = `--sql 0941de25-46fd-4742-b333-e59d146db9ee
update jobs
set status = 'completed',
    result = $3::jsonb,
    updated_at = now()
where id = $1::uuid
  and status = 'running'
  and claimed_at = $2::timestamptz;
`

// QFailJob requeues with backoff while the retry budget lasts; $5 forces a
// terminal failure for errors marked non-retryable.
const QFailJob = `--sql db1ecbc8-e32c-443a-a670-fba1794faf36
update jobs
set status = case when not $5::bool and attempts < max_attempts then 'queued' else 'failed' end,
    scheduled_for = case when not $5::bool and attempts < max_attempts then now() + ($3::int * interval '1 second') else scheduled_for end,
    claimed_at = null,
    error_message = $4::text,
    updated_at = now()
where id = $1::uuid
  and status = 'running'
  and claimed_at = $2::timestamptz
returning status;
`

const QReclaimStuckJobs = `--sql 704b6bf5-961e-4086-bb28-d270f3e00cb0
update jobs
set status = case when attempts < max_attempts then 'queued' else 'failed' end,
    error_message = case when attempts < max_attempts then error_message else 'stuck: execution timed out' end,
    claimed_at = null,
    scheduled_for = null,
    updated_at = now()
where status = 'running'
  and claimed_at < now() - (timeout_seconds * interval '1 second')
returning id, status, attempts;
`

const QSelectJob = `--sql 3a013cbb-b9ff-4aec-9f8d-e76ef81c9d3b
select id, order_id, account_id, type, status, payload, result, error_message,
       attempts, max_attempts, cost_units, scheduled_for, claimed_at, created_at, updated_at
from jobs
where id = $1::uuid
limit 1;
`

// QDiscardJob drops the result of a job whose parent order was cancelled
// while it was in flight.
const QDiscardJob = `--sql 843f1f6e-5a1d-4f5f-9f7c-2b8e3a1c9d44
update jobs
set status = 'cancelled',
    updated_at = now()
where id = $1::uuid
  and status = 'running'
  and claimed_at = $2::timestamptz;
`

const QSelectOrderCancelled = `--sql 38bc6c9e-727b-4d78-9648-54d8fcd1dcff
select cancelled_at is not null
from orders
where id = $1::uuid
limit 1;
`
