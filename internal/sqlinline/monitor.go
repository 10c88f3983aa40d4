package sqlinline

const QMonitorCountsGlobal = `--sql 75c8154d-d021-408b-8129-2eb66d579507
select status, count(*)
from jobs
group by status;
`

const QMonitorCountsAccount = `--sql 22fad284-c1c5-49da-abea-f2e0f67476e6
select status, count(*)
from jobs
where account_id = $1::uuid
group by status;
`

const QMonitorBacklogGlobal = `--sql 618b35cf-5d54-42dc-b816-07158568aff4
select coalesce(extract(epoch from now() - min(created_at)), 0)::float8
from jobs
where status = 'queued'
  and (scheduled_for is null or scheduled_for <= now());
`

const QMonitorBacklogAccount = `--sql 632b91de-2b66-45f1-933e-4bbf2a477760
select coalesce(extract(epoch from now() - min(created_at)), 0)::float8
from jobs
where account_id = $1::uuid
  and status = 'queued'
  and (scheduled_for is null or scheduled_for <= now());
`

const QMonitorStuckGlobal = `--sql 7f008ec4-6feb-471c-8ae9-6d10cbb94e2a
select count(*)
from jobs
where status = 'running'
  and claimed_at < now() - (timeout_seconds * interval '1 second');
`

const QMonitorStuckAccount = `--sql c17068f9-4fc4-47fc-997f-aefc2dbdf874
select count(*)
from jobs
where account_id = $1::uuid
  and status = 'running'
  and claimed_at < now() - (timeout_seconds * interval '1 second');
`

const QMonitorRecentGlobal = `--sql 47653e90-59fa-4860-8992-612cca869f10
select id, order_id, type, status, error_message, updated_at
from jobs
order by updated_at desc
limit $1;
`

const QMonitorRecentAccount = `--sql 2d26ac10-cf2b-49ba-b33f-51a79b80731e
select id, order_id, type, status, error_message, updated_at
from jobs
where account_id = $1::uuid
order by updated_at desc
limit $2;
`
