package dependency

import (
	"time"

	"reunion-member-svc/src/clients"
	"reunion-member-svc/src/internal/auth"
	"reunion-member-svc/src/internal/cache"
	"reunion-member-svc/src/internal/config"
	"reunion-member-svc/src/internal/member"
	"reunion-member-svc/src/internal/session"

	"github.com/gin-gonic/gin"
)

type Manager struct {
	Router         *gin.Engine
	Config         *config.Configuration
	Mongodb        *clients.MongoDB
	Redis          *clients.RedisClient
	RabbitMQ       *clients.RabbitMQ
	CacheService   cache.Service
	MemberService  member.Service
	SessionService session.Service
	SessionHandler session.Handler
	TokenManager   *auth.Manager
	Activity       *clients.ActivityPublisher
}

func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) *Manager {
	cacheService := cache.NewCacheService(redisClient.Client, cfg)
	sessionRepo := session.NewSessionRepository(mongodb, cfg.Database.Collections.Sessions)
	sessionService := session.NewSessionService(sessionRepo, cacheService, cfg)
	memberRepo := member.NewMemberRepository(mongodb, cfg.Database.Collections.Members)
	memberService := member.NewMemberService(memberRepo)
	tokenManager := auth.NewManager(cfg.Security.JwtKey,
		time.Duration(cfg.Security.TokenExpiryMinutes)*time.Minute)
	activity := clients.NewActivityPublisher(cfg, rabbitMQ.Channel)
	sessionHandler := session.NewHandler(cfg, memberService, sessionService, tokenManager, activity)

	return &Manager{
		Router:         router,
		Config:         cfg,
		Mongodb:        mongodb,
		Redis:          redisClient,
		RabbitMQ:       rabbitMQ,
		CacheService:   cacheService,
		MemberService:  memberService,
		SessionService: sessionService,
		SessionHandler: sessionHandler,
		TokenManager:   tokenManager,
		Activity:       activity,
	}
}
