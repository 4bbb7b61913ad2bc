package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "release"},
		Assistant: AssistantConfig{
			MemoryWindow:       12,
			PromotionThreshold: 4,
			ScoreThreshold:     0.7,
			TopK:               5,
		},
	}
}

func TestConfigValidate(t *testing.T) {
	Convey("配置校验测试", t, func() {
		Convey("合法配置通过", func() {
			So(validConfig().Validate(), ShouldBeNil)
		})

		Convey("非法端口被拒绝", func() {
			cfg := validConfig()
			cfg.Server.Port = 0
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Server.Port = 70000
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("非法运行模式被拒绝", func() {
			cfg := validConfig()
			cfg.Server.Mode = "production"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("助手策略参数越界被拒绝", func() {
			cfg := validConfig()
			cfg.Assistant.MemoryWindow = 0
			So(cfg.Validate(), ShouldNotBeNil)

			cfg = validConfig()
			cfg.Assistant.PromotionThreshold = -1
			So(cfg.Validate(), ShouldNotBeNil)

			cfg = validConfig()
			cfg.Assistant.ScoreThreshold = 1.5
			So(cfg.Validate(), ShouldNotBeNil)

			cfg = validConfig()
			cfg.Assistant.TopK = 0
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}
