package dialogue

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"tendero/internal/ai"
	"tendero/internal/model"
)

type fakeLister struct {
	products []*model.Product
	err      error
}

func (f *fakeLister) ListByTenant(_ context.Context, _ string, _ int64) ([]*model.Product, error) {
	return f.products, f.err
}

type fakeRecovery struct {
	md map[string]any
}

func (f *fakeRecovery) LastDialogueMetadata(_ context.Context, _ string) (map[string]any, error) {
	return f.md, nil
}

func newTestEngine(t *testing.T, lister ProductLister, recovery Recovery) *Engine {
	t.Helper()
	matcher, err := NewMatcher()
	if err != nil {
		t.Fatalf("failed to create matcher: %v", err)
	}
	return NewEngine(NewMemoryStore(time.Minute), lister, matcher, nil, recovery, 0.6)
}

func TestEnginePurchaseFlow(t *testing.T) {
	Convey("完整购买流程测试", t, func() {
		ctx := context.Background()
		engine := newTestEngine(t, &fakeLister{products: testProducts()}, nil)
		in := StepInput{ConversationID: "conv-1", TenantID: "tienda-1"}

		Convey("购买意图 + 可解析的商品 -> 请求加购确认", func() {
			in.Text = "quiero comprar la Mochila Urbana"
			in.Intent = ai.IntentPurchase

			result, err := engine.Step(ctx, in)
			So(err, ShouldBeNil)
			So(result.Handled, ShouldBeTrue)
			So(result.Stage, ShouldEqual, StageAwaitingProduct)
			So(result.Reply, ShouldContainSubstring, "Mochila Urbana")
			So(engine.Active(ctx, "conv-1"), ShouldBeTrue)

			Convey("肯定回复 -> 入购物车", func() {
				in.Text = "sí"
				in.Intent = ai.IntentGeneral

				result, err := engine.Step(ctx, in)
				So(err, ShouldBeNil)
				So(result.Handled, ShouldBeTrue)
				So(result.Stage, ShouldEqual, StageCartOpen)
				So(result.Cart, ShouldNotBeNil)
				So(result.Cart.Items, ShouldHaveLength, 1)
				So(result.Cart.Items[0].ProductID, ShouldEqual, "p1")

				Convey("结算意图 -> 请求结算确认并报总价", func() {
					in.Text = "quiero pagar"
					in.Intent = ai.IntentCheckout

					result, err := engine.Step(ctx, in)
					So(err, ShouldBeNil)
					So(result.Stage, ShouldEqual, StageAwaitingCheckout)
					So(result.Cart.Total, ShouldAlmostEqual, 45.5)

					Convey("确认 -> 完成并跳转支付，状态销毁", func() {
						in.Text = "sí, confirmo"
						in.Intent = ai.IntentGeneral

						result, err := engine.Step(ctx, in)
						So(err, ShouldBeNil)
						So(result.Stage, ShouldEqual, StageCompleted)
						So(result.RedirectCheckout, ShouldBeTrue)
						So(engine.Active(ctx, "conv-1"), ShouldBeFalse)
					})

					Convey("反悔 -> 回到购物车，不丢商品", func() {
						in.Text = "mejor no"
						in.Intent = ai.IntentGeneral

						result, err := engine.Step(ctx, in)
						So(err, ShouldBeNil)
						So(result.Stage, ShouldEqual, StageCartOpen)
						So(result.Cart.Items, ShouldHaveLength, 1)
					})
				})
			})

			Convey("否定回复 -> 丢弃待确认商品回到空闲", func() {
				in.Text = "no gracias"
				in.Intent = ai.IntentGeneral

				result, err := engine.Step(ctx, in)
				So(err, ShouldBeNil)
				So(result.Stage, ShouldEqual, StageIdle)
				So(result.Cart, ShouldBeNil)
			})

			Convey("模糊回复 -> 原地追问，阶段不变", func() {
				in.Text = "mmm quizás luego te digo"
				in.Intent = ai.IntentGeneral

				result, err := engine.Step(ctx, in)
				So(err, ShouldBeNil)
				So(result.Stage, ShouldEqual, StageAwaitingProduct)
				So(result.Reply, ShouldContainSubstring, "sí o no")
			})

			Convey("任意阶段取消 -> 流程终止", func() {
				in.Text = "cancelar"
				in.Intent = ai.IntentGeneral

				result, err := engine.Step(ctx, in)
				So(err, ShouldBeNil)
				So(result.Handled, ShouldBeTrue)
				So(engine.Active(ctx, "conv-1"), ShouldBeFalse)
			})
		})
	})
}

func TestEngineEdgeCases(t *testing.T) {
	Convey("状态机边界场景测试", t, func() {
		ctx := context.Background()

		Convey("无状态且非购买意图 -> 不处理，交回常规问答", func() {
			engine := newTestEngine(t, &fakeLister{products: testProducts()}, nil)

			result, err := engine.Step(ctx, StepInput{
				ConversationID: "conv-1", TenantID: "tienda-1",
				Text: "hola", Intent: ai.IntentGeneral,
			})
			So(err, ShouldBeNil)
			So(result.Handled, ShouldBeFalse)
		})

		Convey("购买意图但商品解析不出 -> 追问且保持空闲", func() {
			engine := newTestEngine(t, &fakeLister{products: testProducts()}, nil)

			result, err := engine.Step(ctx, StepInput{
				ConversationID: "conv-1", TenantID: "tienda-1",
				Text: "quiero comprar algo bonito", Intent: ai.IntentPurchase,
			})
			So(err, ShouldBeNil)
			So(result.Handled, ShouldBeTrue)
			So(result.Stage, ShouldEqual, StageIdle)
		})

		Convey("空闲状态下的普通提问放行给常规问答", func() {
			engine := newTestEngine(t, &fakeLister{products: testProducts()}, nil)
			seed := NewState("conv-1", "tienda-1")
			So(engine.store.Put(ctx, seed), ShouldBeNil)

			result, err := engine.Step(ctx, StepInput{
				ConversationID: "conv-1", TenantID: "tienda-1",
				Text: "¿hacen envíos a provincia?", Intent: ai.IntentGeneral,
			})
			So(err, ShouldBeNil)
			So(result.Handled, ShouldBeFalse)
		})

		Convey("商品咨询意图不被状态机截获", func() {
			engine := newTestEngine(t, &fakeLister{products: testProducts()}, nil)
			seed := NewState("conv-1", "tienda-1")
			So(engine.store.Put(ctx, seed), ShouldBeNil)

			result, err := engine.Step(ctx, StepInput{
				ConversationID: "conv-1", TenantID: "tienda-1",
				Text: "¿cuánto cuesta la Mochila Urbana?", Intent: ai.IntentProductInquiry,
			})
			So(err, ShouldBeNil)
			So(result.Handled, ShouldBeFalse)
		})

		Convey("空购物车直接结算 -> 追问商品而非报错", func() {
			engine := newTestEngine(t, &fakeLister{products: testProducts()}, nil)

			result, err := engine.Step(ctx, StepInput{
				ConversationID: "conv-1", TenantID: "tienda-1",
				Text: "quiero pagar", Intent: ai.IntentCheckout,
			})
			So(err, ShouldBeNil)
			So(result.Handled, ShouldBeTrue)
			So(result.Stage, ShouldEqual, StageIdle)
			So(result.RedirectCheckout, ShouldBeFalse)
		})

		Convey("目录查询失败 -> 就地降级，不中断", func() {
			engine := newTestEngine(t, &fakeLister{err: context.DeadlineExceeded}, nil)

			result, err := engine.Step(ctx, StepInput{
				ConversationID: "conv-1", TenantID: "tienda-1",
				Text: "quiero la mochila", Intent: ai.IntentPurchase,
			})
			So(err, ShouldBeNil)
			So(result.Handled, ShouldBeTrue)
			So(result.Stage, ShouldEqual, StageIdle)
		})

		Convey("缓存未命中时从消息元数据重建状态", func() {
			lost := NewState("conv-1", "tienda-1")
			lost.Stage = StageCartOpen
			lost.AddToCart(PendingProduct{ProductID: "p1", Name: "Mochila Urbana", Price: 45.5}, 1)

			engine := newTestEngine(t, &fakeLister{products: testProducts()}, &fakeRecovery{md: lost.Metadata()})

			So(engine.Active(ctx, "conv-1"), ShouldBeTrue)

			result, err := engine.Step(ctx, StepInput{
				ConversationID: "conv-1", TenantID: "tienda-1",
				Text: "ver carrito", Intent: ai.IntentCart,
			})
			So(err, ShouldBeNil)
			So(result.Cart, ShouldNotBeNil)
			So(result.Cart.Items, ShouldHaveLength, 1)
		})

		Convey("购物车开启时的普通提问放行给常规问答", func() {
			engine := newTestEngine(t, &fakeLister{products: testProducts()}, nil)
			seed := NewState("conv-1", "tienda-1")
			seed.Stage = StageCartOpen
			seed.AddToCart(PendingProduct{ProductID: "p1", Name: "Mochila Urbana", Price: 45.5}, 1)
			So(engine.store.Put(ctx, seed), ShouldBeNil)

			result, err := engine.Step(ctx, StepInput{
				ConversationID: "conv-1", TenantID: "tienda-1",
				Text: "¿hacen envíos a provincia?", Intent: ai.IntentGeneral,
			})
			So(err, ShouldBeNil)
			So(result.Handled, ShouldBeFalse)
			// 状态原样保留
			So(engine.Active(ctx, "conv-1"), ShouldBeTrue)
		})
	})
}
