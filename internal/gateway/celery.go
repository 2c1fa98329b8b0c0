package gateway

import (
	"sync"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gocelery/gocelery"
	"github.com/gomodule/redigo/redis"
)

var celeryService *CeleryService
var celeryOnce sync.Once

type CeleryService struct {
	cli *gocelery.CeleryClient
}

func NewRedisPool(url string, password string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     5,                 // maximum number of idle connections in the pool
		MaxActive:   0,                 // maximum number of connections allocated by the pool at a given time
		IdleTimeout: 240 * time.Second, // close connections after remaining idle for this duration
		Dial: func() (redis.Conn, error) {
			var conn redis.Conn
			var err error
			if password != "" {
				conn, err = redis.DialURL(url, redis.DialPassword(password))
			} else {
				conn, err = redis.DialURL(url)
			}
			if err != nil {
				return nil, err
			}
			return conn, err
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}
}

func NewCeleryService(redisUrl, redisPassword string) *CeleryService {
	celeryOnce.Do(
		func() {
			redisPool := NewRedisPool(redisUrl, redisPassword)
			celeryClient, err := gocelery.NewCeleryClient(
				gocelery.NewRedisBroker(redisPool),
				gocelery.NewRedisBackend(redisPool),
				1)
			if err != nil {
				logs.GetLogger().Fatalf("Failed init celery service, error: %+v", err)
			}
			celeryService = &CeleryService{
				cli: celeryClient,
			}
		})

	return celeryService
}

func (s *CeleryService) DelayTask(taskName string, params ...interface{}) (*gocelery.AsyncResult, error) {
	return s.cli.Delay(taskName, params...)
}
