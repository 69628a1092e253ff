package helpers

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gateway "github.com/nimasrn/sms-verify/internal/gateways"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/repository"
	"github.com/nimasrn/sms-verify/pkg/pg"
	"github.com/nimasrn/sms-verify/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func SetupTestDB(t *testing.T) *pg.DB {
	t.Helper()
	db, err := repository.OpenTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return pg.New(db, db)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)

	// adapters are cached by name, so every test gets its own
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "test:", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, adapter
}

func CreateTestUser(t *testing.T, db *pg.DB, u model.User) *model.User {
	t.Helper()
	created, err := repository.NewUserRepository(db).Create(context.Background(), &u)
	require.NoError(t, err)
	return created
}

func CreateTestService(t *testing.T, db *pg.DB, s model.Service) *model.Service {
	t.Helper()
	created, err := repository.NewServiceRepository(db).Create(context.Background(), &s)
	require.NoError(t, err)
	return created
}

func SetSetting(t *testing.T, db *pg.DB, key, value string, typ model.SettingType) {
	t.Helper()
	err := repository.NewSettingRepository(db).Upsert(context.Background(), []model.Setting{{Key: key, Value: value, Type: typ}})
	require.NoError(t, err)
}

// FakeUpstream is a scripted provider speaking the upstream wire format.
// A rented number receives its code on the DeliverAfter-th poll; zero never delivers.
type FakeUpstream struct {
	Token        string
	DeliverAfter int

	mu       sync.Mutex
	next     int
	polls    map[string]int
	released map[string]bool
}

func (f *FakeUpstream) Released(requestID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released[requestID]
}

func (f *FakeUpstream) handle(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	if string(ctx.QueryArgs().Peek("token")) != f.Token {
		ctx.SetBodyString(`{"success":false,"error_code":"wrong_token","error_msg":"Wrong token!"}`)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	requestID := string(ctx.QueryArgs().Peek("request_id"))
	switch string(ctx.Path()) {
	case "/control/get-number":
		f.next++
		ctx.SetBodyString(fmt.Sprintf(`{"request_id":%d,"number":"1650253%04d"}`, 1000+f.next, f.next))
	case "/control/get-sms":
		f.polls[requestID]++
		if f.DeliverAfter > 0 && f.polls[requestID] >= f.DeliverAfter {
			ctx.SetBodyString(fmt.Sprintf(`{"request_id":%q,"sms_code":"424242","sms_text":"Your code is 424242"}`, requestID))
			return
		}
		ctx.SetBodyString(`{"error_code":"wait_sms","error_msg":"Still waiting"}`)
	case "/control/set-status":
		f.released[requestID] = true
		ctx.SetBodyString(`{"success":true}`)
	case "/control/get-services":
		ctx.SetBodyString(`{"services":[{"code":"wa","name":"WhatsApp","cost":"1.2","count":10}]}`)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

// StartFakeUpstream serves f in memory and returns a client whose server_1 points at it.
func StartFakeUpstream(t *testing.T, f *FakeUpstream) *gateway.Client {
	t.Helper()
	f.polls = make(map[string]int)
	f.released = make(map[string]bool)

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: f.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	client, err := gateway.NewClient(&gateway.Config{
		Servers:                 []gateway.ServerConfig{{Server: model.ServerOne, URL: "http://upstream.local", Token: f.Token}},
		Country:                 "2",
		PhoneRegion:             "US",
		Timeout:                 time.Second,
		MaxRetries:              1,
		RetryDelay:              time.Millisecond,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   time.Minute,
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}
