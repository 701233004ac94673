package database

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// InitRedis connects the optional session cache. A nil client is returned
// when Redis is not configured or unreachable; callers must nil-check.
func InitRedis() *redis.Client {
	host := viper.GetString("redis.host")
	if host == "" {
		log.Println("[DB] Redis not configured, session cache disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     host + ":" + viper.GetString("redis.port"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("[DB] Redis connection failed, continuing without session cache: %v", err)
		return nil
	}

	log.Println("[DB] Redis connection established")
	return rdb
}
