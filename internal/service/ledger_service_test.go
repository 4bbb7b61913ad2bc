package service

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tendero/internal/model"
	"tendero/internal/repository"
)

type fakeConversationStore struct {
	conversations []*model.Conversation
	createErr     error
	raceWinner    *model.Conversation
	rollupErr     error
	rollupCalls   int
	promotions    int
	lastPreview   string
}

func (f *fakeConversationStore) Create(_ context.Context, conv *model.Conversation) error {
	if f.createErr != nil {
		if f.raceWinner != nil {
			// 竞争胜者的记录此刻已由另一请求写入
			f.conversations = append(f.conversations, f.raceWinner)
		}
		return f.createErr
	}
	conv.ID = primitive.NewObjectID()
	f.conversations = append(f.conversations, conv)
	return nil
}

func (f *fakeConversationStore) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	for _, c := range f.conversations {
		if c.ID.Hex() == id {
			return c, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeConversationStore) FindBySession(_ context.Context, tenantID, sessionID string) (*model.Conversation, error) {
	for _, c := range f.conversations {
		if c.TenantID == tenantID && c.SessionID == sessionID {
			return c, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeConversationStore) FindLatestByUser(_ context.Context, tenantID, userID string) (*model.Conversation, error) {
	var latest *model.Conversation
	for _, c := range f.conversations {
		if c.TenantID != tenantID || c.UserID != userID {
			continue
		}
		if latest == nil || c.LastActivity.After(latest.LastActivity) {
			latest = c
		}
	}
	if latest == nil {
		return nil, model.ErrNotFound
	}
	return latest, nil
}

func (f *fakeConversationStore) ListPersisted(_ context.Context, tenantID string, _, _ int64) ([]*model.Conversation, error) {
	var out []*model.Conversation
	for _, c := range f.conversations {
		if c.TenantID == tenantID && c.IsPersisted {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConversationStore) ApplyMessageRollup(_ context.Context, id primitive.ObjectID, sender model.Sender, preview string, threshold int) (*model.Conversation, error) {
	f.rollupCalls++
	if f.rollupErr != nil {
		return nil, f.rollupErr
	}
	for _, c := range f.conversations {
		if c.ID != id {
			continue
		}
		c.MessageCount++
		if c.MessageCount >= threshold && !c.IsPersisted {
			c.IsPersisted = true
			f.promotions++
		}
		c.LastMessagePreview = preview
		c.LastMessageSender = sender
		c.LastActivity = time.Now()
		f.lastPreview = preview
		return c, nil
	}
	return nil, model.ErrNotFound
}

func (f *fakeConversationStore) Update(_ context.Context, _ string, _ bson.M) error {
	return nil
}

type fakeMessageStore struct {
	messages  []*model.Message
	insertErr error
	listErr   error
}

func (f *fakeMessageStore) Insert(_ context.Context, msg *model.Message) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	msg.ID = primitive.NewObjectID()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeMessageStore) ListRecent(_ context.Context, conversationID primitive.ObjectID, limit int64) ([]*model.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*model.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (f *fakeMessageStore) FindLastStructured(_ context.Context, conversationID primitive.ObjectID) (*model.Message, error) {
	for i := len(f.messages) - 1; i >= 0; i-- {
		m := f.messages[i]
		if m.ConversationID == conversationID && m.Type == model.MessageTypeStructured {
			return m, nil
		}
	}
	return nil, model.ErrNotFound
}

func seedConversation(store *fakeConversationStore, tenantID, sessionID, userID string) *model.Conversation {
	conv := &model.Conversation{
		ID:           primitive.NewObjectID(),
		TenantID:     tenantID,
		SessionID:    sessionID,
		UserID:       userID,
		Status:       model.ConversationStatusActive,
		LastActivity: time.Now(),
	}
	store.conversations = append(store.conversations, conv)
	return conv
}

func TestEnsureConversation(t *testing.T) {
	Convey("对话定位与创建测试", t, func() {
		ctx := context.Background()
		convStore := &fakeConversationStore{}
		msgStore := &fakeMessageStore{}
		svc := NewLedgerService(convStore, msgStore, 4, 200)

		Convey("租户为空 -> 拒绝", func() {
			_, _, err := svc.EnsureConversation(ctx, "", "", "sess-1", "")
			So(err, ShouldEqual, model.ErrInvalidTenant)
		})

		Convey("按对话 ID 定位", func() {
			seeded := seedConversation(convStore, "tienda-1", "sess-1", "")

			conv, resolution, err := svc.EnsureConversation(ctx, "tienda-1", seeded.ID.Hex(), "", "")
			So(err, ShouldBeNil)
			So(resolution, ShouldEqual, ResolvedByID)
			So(conv.ID, ShouldEqual, seeded.ID)

			Convey("跨租户的对话 ID 按不存在处理", func() {
				_, _, err := svc.EnsureConversation(ctx, "tienda-2", seeded.ID.Hex(), "", "")
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("按会话 ID 定位", func() {
			seeded := seedConversation(convStore, "tienda-1", "sess-1", "")

			conv, resolution, err := svc.EnsureConversation(ctx, "tienda-1", "", "sess-1", "")
			So(err, ShouldBeNil)
			So(resolution, ShouldEqual, ResolvedBySession)
			So(conv.ID, ShouldEqual, seeded.ID)
		})

		Convey("按用户最近活跃对话定位", func() {
			older := seedConversation(convStore, "tienda-1", "sess-old", "user-1")
			older.LastActivity = time.Now().Add(-time.Hour)
			newer := seedConversation(convStore, "tienda-1", "sess-new", "user-1")

			conv, resolution, err := svc.EnsureConversation(ctx, "tienda-1", "", "", "user-1")
			So(err, ShouldBeNil)
			So(resolution, ShouldEqual, ResolvedByUser)
			So(conv.ID, ShouldEqual, newer.ID)
		})

		Convey("会话命中优先于用户最近对话", func() {
			bySession := seedConversation(convStore, "tienda-1", "sess-1", "")
			seedConversation(convStore, "tienda-1", "sess-2", "user-1")

			conv, resolution, err := svc.EnsureConversation(ctx, "tienda-1", "", "sess-1", "user-1")
			So(err, ShouldBeNil)
			So(resolution, ShouldEqual, ResolvedBySession)
			So(conv.ID, ShouldEqual, bySession.ID)
		})

		Convey("无匹配且有会话 ID -> 新建", func() {
			conv, resolution, err := svc.EnsureConversation(ctx, "tienda-1", "", "sess-1", "user-1")
			So(err, ShouldBeNil)
			So(resolution, ShouldEqual, ResolvedByCreate)
			So(conv.Status, ShouldEqual, model.ConversationStatusActive)
			So(conv.IsPersisted, ShouldBeFalse)
			So(conv.MessageCount, ShouldEqual, 0)
		})

		Convey("无匹配且无会话 ID -> 无法新建", func() {
			_, _, err := svc.EnsureConversation(ctx, "tienda-1", "", "", "user-1")
			So(err, ShouldEqual, model.ErrSessionRequired)
		})

		Convey("并发创建竞争 -> 回读唯一索引的胜者", func() {
			winner := &model.Conversation{
				ID:        primitive.NewObjectID(),
				TenantID:  "tienda-1",
				SessionID: "sess-1",
				Status:    model.ConversationStatusActive,
			}
			convStore.createErr = repository.ErrDuplicateSession
			convStore.raceWinner = winner

			conv, resolution, err := svc.EnsureConversation(ctx, "tienda-1", "", "sess-1", "")
			So(err, ShouldBeNil)
			So(resolution, ShouldEqual, ResolvedBySession)
			So(conv.ID, ShouldEqual, winner.ID)
			So(convStore.conversations, ShouldHaveLength, 1)
		})
	})
}

func TestLogMessage(t *testing.T) {
	Convey("消息落库与汇总晋升测试", t, func() {
		ctx := context.Background()
		convStore := &fakeConversationStore{}
		msgStore := &fakeMessageStore{}
		svc := NewLedgerService(convStore, msgStore, 4, 200)
		conv := seedConversation(convStore, "tienda-1", "sess-1", "")

		Convey("空内容在任何副作用之前拒绝", func() {
			_, err := svc.LogMessage(ctx, conv.ID, model.SenderUser, "   ", model.MessageTypeText, nil)
			So(err, ShouldEqual, model.ErrEmptyContent)
			So(msgStore.messages, ShouldBeEmpty)
			So(convStore.rollupCalls, ShouldEqual, 0)
		})

		Convey("计数严格随消息行增长，晋升恰好发生一次", func() {
			for i := 0; i < 5; i++ {
				result, err := svc.LogMessage(ctx, conv.ID, model.SenderUser, "hola", model.MessageTypeText, nil)
				So(err, ShouldBeNil)
				So(result.Conversation.MessageCount, ShouldEqual, i+1)
				// 第 4 条触发晋升，之前一直是 false，之后不再有晋升动作
				So(result.Conversation.IsPersisted, ShouldEqual, i+1 >= 4)
			}
			So(msgStore.messages, ShouldHaveLength, 5)
			So(convStore.promotions, ShouldEqual, 1)
		})

		Convey("预览按字符截断", func() {
			short := NewLedgerService(convStore, msgStore, 4, 10)

			_, err := short.LogMessage(ctx, conv.ID, model.SenderUser, "¿cuánto cuesta la mochila urbana?", model.MessageTypeText, nil)
			So(err, ShouldBeNil)
			So([]rune(convStore.lastPreview), ShouldHaveLength, 10)
		})

		Convey("汇总更新失败 -> 消息保留，返回无对话快照的结果", func() {
			convStore.rollupErr = context.DeadlineExceeded

			result, err := svc.LogMessage(ctx, conv.ID, model.SenderBot, "respuesta", model.MessageTypeText, nil)
			So(err, ShouldBeNil)
			So(result.Message, ShouldNotBeNil)
			So(result.Conversation, ShouldBeNil)
			So(msgStore.messages, ShouldHaveLength, 1)
		})

		Convey("消息插入失败 -> 错误上抛，不触发汇总", func() {
			msgStore.insertErr = context.DeadlineExceeded

			_, err := svc.LogMessage(ctx, conv.ID, model.SenderUser, "hola", model.MessageTypeText, nil)
			So(err, ShouldNotBeNil)
			So(convStore.rollupCalls, ShouldEqual, 0)
		})
	})
}

func TestGetRecentMessages(t *testing.T) {
	Convey("最近消息读取测试", t, func() {
		ctx := context.Background()
		convStore := &fakeConversationStore{}
		msgStore := &fakeMessageStore{}
		svc := NewLedgerService(convStore, msgStore, 4, 200)
		conv := seedConversation(convStore, "tienda-1", "sess-1", "")

		Convey("正常读取返回时间正序消息", func() {
			for _, text := range []string{"hola", "busco una mochila", "¿hay stock?"} {
				_, err := svc.LogMessage(ctx, conv.ID, model.SenderUser, text, model.MessageTypeText, nil)
				So(err, ShouldBeNil)
			}

			msgs := svc.GetRecentMessages(ctx, conv.ID, 10)
			So(msgs, ShouldHaveLength, 3)
			So(msgs[0].Content, ShouldEqual, "hola")
			So(msgs[2].Content, ShouldEqual, "¿hay stock?")
		})

		Convey("读取失败降级为空列表而非错误", func() {
			msgStore.listErr = context.DeadlineExceeded

			msgs := svc.GetRecentMessages(ctx, conv.ID, 10)
			So(msgs, ShouldBeEmpty)
		})
	})
}
