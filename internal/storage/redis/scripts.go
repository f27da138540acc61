package redis

const (
	// addRequestScript atomically creates a request and indexes it by creation time
	addRequestScript = `
local request_key = KEYS[1]   -- parentguard:request:{id}
local index_key = KEYS[2]     -- parentguard:requests

local id = ARGV[1]
local user_id = ARGV[2]
local reason = ARGV[3]
local created_at = ARGV[4]
local score = tonumber(ARGV[5])

if redis.call('EXISTS', request_key) == 1 then
  return redis.error_reply('request already exists')
end

redis.call('HSET', request_key,
  'id', id,
  'user_id', user_id,
  'reason', reason,
  'status', 'pending',
  'created_at', created_at,
  'until_end_of_day', '0'
)
redis.call('ZADD', index_key, score, id)

return 'OK'
`

	// resolveRequestScript approves or denies a pending request exactly once.
	// Returns false (nil reply) when the request is missing or already resolved.
	resolveRequestScript = `
local request_key = KEYS[1]   -- parentguard:request:{id}

local status = ARGV[1]
local response_at = ARGV[2]
local duration = ARGV[3]
local until_end_of_day = ARGV[4]

local current = redis.call('HGET', request_key, 'status')
if not current or current ~= 'pending' then
  return false
end

redis.call('HSET', request_key,
  'status', status,
  'response_at', response_at,
  'until_end_of_day', until_end_of_day
)
if duration ~= '' then
  redis.call('HSET', request_key, 'approved_duration_minutes', duration)
end

return 'OK'
`

	// incrementDailyUsageScript atomically increments or creates daily usage
	incrementDailyUsageScript = `
local usage_key = KEYS[1]     -- parentguard:usage:daily:{date}:{userID}
local index_key = KEYS[2]     -- parentguard:usage:daily:index:{date}

local date = ARGV[1]
local user_id = ARGV[2]
local minutes = tonumber(ARGV[3])

if redis.call('EXISTS', usage_key) == 0 then
  redis.call('HSET', usage_key,
    'date', date,
    'user_id', user_id,
    'minutes', minutes
  )
  -- Keep 90 days of history (7776000 seconds)
  redis.call('EXPIRE', usage_key, 7776000)

  redis.call('SADD', index_key, user_id)
  redis.call('EXPIRE', index_key, 7776000)
else
  redis.call('HINCRBY', usage_key, 'minutes', minutes)
end

return 'OK'
`
)
