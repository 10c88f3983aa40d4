package sqlinline

const QInsertJobEvent = `--sql 3ef48b78-c692-402b-9a57-f4363b57076b
insert into job_events(id, job_id, level, message, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, now());
`

const QNotifyJobEvent = `--sql 80d6041a-0192-4ca1-92bc-d38b7004e2a8
select pg_notify('job_events', $1::text);
`

const QSelectRecentJobEvents = `--sql 79b25ffb-cdd9-4adc-ab82-651810531b04
select e.id, e.job_id, e.level, e.message, e.created_at
from job_events e
order by e.created_at desc
limit $1;
`
