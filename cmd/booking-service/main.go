package main

import (
	"log"

	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"voyago/internal/pkg/bootstrap"
	"voyago/internal/pkg/config"
	"voyago/internal/pkg/httpclient"
	"voyago/internal/pkg/mq"
	pkgredis "voyago/internal/pkg/redis"
	"voyago/internal/service/booking/application"
	appsaga "voyago/internal/service/booking/application/saga"
	"voyago/internal/service/booking/infrastructure"
	"voyago/internal/service/booking/infrastructure/adapter"
	"voyago/internal/service/booking/infrastructure/dedup"
	"voyago/internal/service/booking/interfaces"
	"voyago/internal/service/booking/lock"
	"voyago/internal/zookeeper"
)

const (
	serviceName = "booking-service"
	servicePort = 8084
)

func main() {
	bootstrap.Init(serviceName)
	cfg := config.GetCurrentConfig()

	// MySQL
	db, err := gorm.Open(mysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to mysql: %v", err)
	}

	repo := infrastructure.NewGormBookingRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		log.Fatalf("failed to migrate booking schema: %v", err)
	}

	// ZooKeeper：锁管理器用它串行化同一资源的容量检查
	zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers)
	if err != nil {
		log.Fatalf("failed to connect to zookeeper: %v", err)
	}
	defer zkConn.Close()

	// Redis：事件去重
	redisClient, err := pkgredis.NewClient(cfg.Infra.Redis.Addr)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	// 锁管理器与锁编排
	lockManager := lock.NewGormManager(db, zkConn, cfg.Booking.DefaultResourceCap)
	lockSvc := application.NewInventoryLockService(lockManager)

	// 协作方适配器
	tracer := otel.Tracer(serviceName)
	httpClient := httpclient.NewClient(tracer)
	flightSvc := adapter.NewFlightHTTPAdapter(httpClient, cfg.Collaborators.FlightServiceURL)
	hotelSvc := adapter.NewHotelHTTPAdapter(httpClient, cfg.Collaborators.HotelServiceURL)
	paymentSvc := adapter.NewPaymentHTTPAdapter(httpClient, cfg.Collaborators.PaymentServiceURL)

	notifyWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NotifyTopic)
	notifier := adapter.NewNotificationKafkaAdapter(notifyWriter)
	defer notifier.Close()

	webhook := adapter.NewWebhookNotifier(httpClient, cfg.Collaborators.WebhookURL)

	// 应用服务
	validationSvc := application.NewValidationService(repo, lockSvc, flightSvc, hotelSvc, cfg.Booking.BypassValidation)
	orchestrator := appsaga.NewOrchestrator(repo, flightSvc, hotelSvc, paymentSvc, notifier, lockSvc, tracer, cfg.Booking.ConfirmationPrefix)
	backoffice := application.NewBackofficeService(repo, lockSvc)

	// 出箱转发与自消费
	outboxWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OutboxTopic)
	defer outboxWriter.Close()
	relay := infrastructure.NewOutboxRelay(repo, outboxWriter, cfg.Booking.OutboxRelayInterval)

	broadcastWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.BookingTopic)
	defer broadcastWriter.Close()
	dltWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.DeadLetterTopic)
	defer dltWriter.Close()

	selfReader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OutboxTopic, cfg.Infra.Kafka.SelfConsumeGroup)
	defer selfReader.Close()

	consumer := interfaces.NewSelfEventConsumer(
		selfReader,
		validationSvc,
		orchestrator,
		repo,
		dedup.NewStore(redisClient, cfg.Booking.DedupRetention),
		mq.NewFailureHandler(dltWriter),
		broadcastWriter,
		webhook,
		cfg.Booking.ProcessingTimeout,
	)

	// 清扫器
	expiryReaper := application.NewExpiryReaper(repo, lockSvc, cfg.Booking.ExpirySweepInterval)
	lockReaper := lock.NewReaper(lockManager, cfg.Booking.LockCleanupInterval)

	handler := interfaces.NewBookingHandler(orchestrator, backoffice, repo, cfg.Booking.ReservationTTL)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		Runners: []bootstrap.Runner{
			consumer.Run,
			relay.Run,
			expiryReaper.Run,
			lockReaper.Run,
		},
	})
}
