package sqlinline

const QInsertOrder = `--sql c67458fb-c88c-4c89-8dd5-ce4c58d2ba32
insert into orders(id, account_id, title, idempotency_key, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::text, nullif($4::text, ''), now(), now());
`

const QSelectOrderByIdempotencyKey = `--sql 2132c76a-bc62-4b51-8c96-97fc910e7e23
select id
from orders
where account_id = $1::uuid
  and idempotency_key = $2::text
limit 1;
`

const QSelectOrder = `--sql fe2e05fe-8bab-426b-8abd-8268eebdd9da
select id, account_id, title, coalesce(idempotency_key, ''), cancelled_at, created_at, updated_at
from orders
where id = $1::uuid
  and account_id = $2::uuid
limit 1;
`

const QSelectOrderJobs = `--sql 70044119-ac77-45b2-ab18-cb16b38ba2aa
select id, order_id, account_id, type, status, payload, result, error_message,
       attempts, max_attempts, cost_units, scheduled_for, claimed_at, created_at, updated_at
from jobs
where order_id = $1::uuid
order by created_at asc, id asc;
`

const QCancelOrder = `--sql 008de313-292b-4de3-a6fe-bf45952702d0
update orders
set cancelled_at = now(),
    updated_at = now()
where id = $1::uuid
  and account_id = $2::uuid
  and cancelled_at is null
returning id;
`

const QCancelOrderJobs = `--sql 8ac5eb8a-30f5-4351-be3d-8f5d2e2a926c
update jobs
set status = 'cancelled',
    updated_at = now()
where order_id = $1::uuid
  and status = 'queued'
returning id;
`
