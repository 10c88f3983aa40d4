package sqlinline

const QSelectCredentialToken = `--sql 9c3bb0e4-22d1-4fd0-9a8a-09f5d5f3c8aa
select token
from credentials
where provider = $1::text
limit 1;
`

const QUpsertCredentialToken = `--sql 6f4e5a7d-8e52-4d2a-b3fb-e17a4706cb55
insert into credentials(provider, token, properties, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now())
on conflict (provider) do update
    set token = excluded.token,
        properties = excluded.properties,
        updated_at = now();
`
