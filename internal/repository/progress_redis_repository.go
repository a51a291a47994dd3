package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"smartprep_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	userKeyPrefix       = "smartprep:user:"
	unlockedFieldPrefix = "unlocked:"
	lastAttemptField    = "lastQuizAttempt"
	pointsField         = "points"
)

// saveProgressScript 逐字段取 max 写入解锁关卡，ARGV[1] 为最近一次测验 JSON（可为空）
var saveProgressScript = redis.NewScript(`
if ARGV[1] ~= "" then
	redis.call("HSET", KEYS[1], "` + lastAttemptField + `", ARGV[1])
end
for i = 2, #ARGV, 2 do
	local cur = tonumber(redis.call("HGET", KEYS[1], ARGV[i]) or "0") or 0
	local nv = tonumber(ARGV[i + 1])
	if nv > cur then
		redis.call("HSET", KEYS[1], ARGV[i], ARGV[i + 1])
	end
end
return 1
`)

// ProgressRedisRepository redis 后端：每个用户一个 hash，HSET 只改动给定字段
type ProgressRedisRepository struct {
	Redis *redis.Client
}

func NewProgressRedisRepository(rdb *redis.Client) *ProgressRedisRepository {
	return &ProgressRedisRepository{Redis: rdb}
}

func userKey(userID string) string {
	return userKeyPrefix + userID
}

func (r *ProgressRedisRepository) LoadUnlocked(ctx context.Context, userID string) (model.UnlockProgress, error) {
	fields, err := r.Redis.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	progress := make(model.UnlockProgress)
	for field, value := range fields {
		if !strings.HasPrefix(field, unlockedFieldPrefix) {
			continue
		}
		level, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		progress[model.Role(strings.TrimPrefix(field, unlockedFieldPrefix))] = level
	}
	return progress, nil
}

func (r *ProgressRedisRepository) LoadLastAttempt(ctx context.Context, userID string) (*model.QuizAttempt, error) {
	raw, err := r.Redis.HGet(ctx, userKey(userID), lastAttemptField).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var attempt model.QuizAttempt
	if err := json.Unmarshal([]byte(raw), &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *ProgressRedisRepository) SaveProgress(ctx context.Context, userID string, progress model.UnlockProgress, attempt *model.QuizAttempt) error {
	args := make([]interface{}, 0, 1+2*len(progress))
	if attempt != nil {
		b, err := json.Marshal(attempt)
		if err != nil {
			return err
		}
		args = append(args, string(b))
	} else {
		args = append(args, "")
	}
	for role, level := range progress {
		args = append(args, unlockedFieldPrefix+string(role), level)
	}
	return saveProgressScript.Run(ctx, r.Redis, []string{userKey(userID)}, args...).Err()
}

func (r *ProgressRedisRepository) SaveProfile(ctx context.Context, profile model.UserProfile) error {
	now := time.Now().UTC().Format(time.RFC3339)
	key := userKey(profile.UserID)
	_, err := r.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "email", profile.Email, "name", profile.Name, "updatedAt", now)
		pipe.HSetNX(ctx, key, "createdAt", now)
		pipe.HSetNX(ctx, key, pointsField, 0)
		return nil
	})
	return err
}

func (r *ProgressRedisRepository) LoadProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	fields, err := r.Redis.HMGet(ctx, userKey(userID), "email", "name", "createdAt", "updatedAt", pointsField).Result()
	if err != nil {
		return nil, err
	}
	if fields[0] == nil && fields[1] == nil && fields[4] == nil {
		return nil, nil
	}
	profile := &model.UserProfile{UserID: userID}
	if v, ok := fields[0].(string); ok {
		profile.Email = v
	}
	if v, ok := fields[1].(string); ok {
		profile.Name = v
	}
	if v, ok := fields[2].(string); ok {
		profile.CreatedAt, _ = time.Parse(time.RFC3339, v)
	}
	if v, ok := fields[3].(string); ok {
		profile.UpdatedAt, _ = time.Parse(time.RFC3339, v)
	}
	if v, ok := fields[4].(string); ok {
		profile.Points, _ = strconv.ParseInt(v, 10, 64)
	}
	return profile, nil
}

// AddPoints HINCRBY 原子累加积分，返回累加后的值
func (r *ProgressRedisRepository) AddPoints(ctx context.Context, userID string, delta int64) (int64, error) {
	key := userKey(userID)
	var incr *redis.IntCmd
	_, err := r.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, pointsField, delta)
		pipe.HSetNX(ctx, key, "createdAt", time.Now().UTC().Format(time.RFC3339))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
