package kafka

import "errors"

// Config содержит конфигурацию для подключения к Kafka
type Config struct {
	// Enabled выключено по умолчанию: без брокера сервис работает без публикации событий
	Enabled bool `env:"KAFKA_ENABLED" envDefault:"false"`
	// Brokers список брокеров через запятую: "broker1:9092,broker2:9092".
	//   - локальная разработка (go run): localhost:19092
	//   - запуск в Docker: kafka:9092
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	// Topic топик для событий движения товара
	Topic string `env:"KAFKA_TOPIC" envDefault:"warehouse.stock.moved"`
}

// DefaultConfig возвращает конфигурацию с дефолтными значениями для локальной разработки.
func DefaultConfig() Config {
	return Config{
		Brokers: []string{"localhost:19092"},
		Topic:   "warehouse.stock.moved",
	}
}

// Validate проверяет, что включённой публикации заданы брокеры и топик
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.Topic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED=true")
	}
	return nil
}
