package sqlinline

const QSelectQuotaBalance = `--sql c2849bc9-28cc-4cac-8d78-e35919168360
select account_id, period_start, total_units, consumed_units, updated_at
from quota_balances
where account_id = $1::uuid
  and period_start = date_trunc('month', now())::date
limit 1;
`

// QDebitQuota applies the consumption for one completed job exactly once.
// The debit row keyed by job id is the idempotency guard; when the insert is
// a conflict no-op the balance increment does not fire either.
const QDebitQuota = `--sql 0fc446fc-7a9e-4706-964c-cab3ed0e9679
with period as (
    select date_trunc('month', now())::date as start
),
ins as (
    insert into quota_debits(job_id, account_id, period_start, kind, units, created_at)
    select $1::uuid, $2::uuid, period.start, $3::text, $4::int, now()
    from period
    on conflict (job_id) do nothing
    returning units
),
applied as (
    insert into quota_balances(account_id, period_start, total_units, consumed_units, updated_at)
    select $2::uuid, period.start, 0, ins.units, now()
    from period, ins
    on conflict (account_id, period_start) do update
        set consumed_units = quota_balances.consumed_units + excluded.consumed_units,
            updated_at = now()
    returning consumed_units
)
select count(*) from ins;
`

// QSelectUnbilledJobs finds completed jobs whose debit never landed, the
// input for the reconciliation sweep.
const QSelectUnbilledJobs = `--sql 20cf758b-6db8-4a7b-a8f9-36af3e0adaaf
select j.id, j.account_id, j.type, j.cost_units
from jobs j
left join quota_debits d on d.job_id = j.id
where j.status = 'completed'
  and j.cost_units > 0
  and d.job_id is null
order by j.updated_at
limit $1::int;
`

const QCreditQuota = `--sql c60ddb5a-b871-48cc-91cb-9232edc62367
insert into quota_balances(account_id, period_start, total_units, consumed_units, updated_at)
values ($1::uuid, date_trunc('month', now())::date, $2::int, 0, now())
on conflict (account_id, period_start) do update
    set total_units = quota_balances.total_units + excluded.total_units,
        updated_at = now()
returning total_units, consumed_units;
`
