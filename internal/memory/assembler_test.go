package memory

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/cloudwego/eino/schema"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tendero/internal/model"
)

type fakeFetcher struct {
	msgs []*model.Message
	err  error
	got  int64
}

func (f *fakeFetcher) ListRecent(_ context.Context, _ primitive.ObjectID, limit int64) ([]*model.Message, error) {
	f.got = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.msgs, nil
}

func msg(sender model.Sender, content string) *model.Message {
	return &model.Message{Sender: sender, Content: content}
}

func TestAssemblerBuild(t *testing.T) {
	Convey("记忆装配测试", t, func() {
		ctx := context.Background()
		convID := primitive.NewObjectID()

		Convey("历史按角色映射并追加当前消息", func() {
			fetcher := &fakeFetcher{msgs: []*model.Message{
				msg(model.SenderUser, "¿tienen mochilas?"),
				msg(model.SenderBot, "Sí, tenemos varias."),
			}}
			assembler := NewAssembler(fetcher, 12, false)

			transcript := assembler.Build(ctx, convID, "¿de qué color?")
			So(transcript, ShouldHaveLength, 3)
			So(transcript[0].Role, ShouldEqual, schema.User)
			So(transcript[1].Role, ShouldEqual, schema.Assistant)
			So(transcript[2].Role, ShouldEqual, schema.User)
			So(transcript[2].Content, ShouldEqual, "¿de qué color?")
			So(fetcher.got, ShouldEqual, 12)
		})

		Convey("人工客服消息默认不进入上下文", func() {
			fetcher := &fakeFetcher{msgs: []*model.Message{
				msg(model.SenderUser, "quiero hablar con alguien"),
				msg(model.SenderAdmin, "Hola, soy Marta del soporte."),
			}}
			assembler := NewAssembler(fetcher, 12, false)

			transcript := assembler.Build(ctx, convID, "gracias")
			So(transcript, ShouldHaveLength, 2)
			So(transcript[0].Role, ShouldEqual, schema.User)
			So(transcript[1].Content, ShouldEqual, "gracias")
		})

		Convey("配置开启后人工客服消息以 assistant 角色进入", func() {
			fetcher := &fakeFetcher{msgs: []*model.Message{
				msg(model.SenderAdmin, "Hola, soy Marta del soporte."),
			}}
			assembler := NewAssembler(fetcher, 12, true)

			transcript := assembler.Build(ctx, convID, "gracias")
			So(transcript, ShouldHaveLength, 2)
			So(transcript[0].Role, ShouldEqual, schema.Assistant)
		})

		Convey("历史末尾已是同文本用户消息时不重复追加", func() {
			fetcher := &fakeFetcher{msgs: []*model.Message{
				msg(model.SenderBot, "¿En qué te ayudo?"),
				msg(model.SenderUser, "¿tienen mochilas?"),
			}}
			assembler := NewAssembler(fetcher, 12, false)

			transcript := assembler.Build(ctx, convID, "¿tienen mochilas?")
			So(transcript, ShouldHaveLength, 2)
			So(transcript[1].Role, ShouldEqual, schema.User)
		})

		Convey("历史读取失败时放行，只带当前消息", func() {
			fetcher := &fakeFetcher{err: errors.New("mongo down")}
			assembler := NewAssembler(fetcher, 12, false)

			transcript := assembler.Build(ctx, convID, "hola")
			So(transcript, ShouldHaveLength, 1)
			So(transcript[0].Content, ShouldEqual, "hola")
		})

		Convey("无历史时只含当前消息", func() {
			assembler := NewAssembler(&fakeFetcher{}, 12, false)

			transcript := assembler.Build(ctx, convID, "hola")
			So(transcript, ShouldHaveLength, 1)
		})
	})
}
