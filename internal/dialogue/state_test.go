package dialogue

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStateCart(t *testing.T) {
	Convey("购物车状态测试", t, func() {
		state := NewState("conv-1", "tienda-1")

		Convey("加购并生成快照", func() {
			state.AddToCart(PendingProduct{ProductID: "p1", Name: "Mochila", Price: 45.5}, 1)
			state.AddToCart(PendingProduct{ProductID: "p2", Name: "Gorra", Price: 12}, 2)

			snapshot := state.CartSnapshot()
			So(snapshot.Items, ShouldHaveLength, 2)
			So(snapshot.Total, ShouldAlmostEqual, 45.5+24)
		})

		Convey("同商品重复加购合并数量", func() {
			state.AddToCart(PendingProduct{ProductID: "p1", Name: "Mochila", Price: 45.5}, 1)
			state.AddToCart(PendingProduct{ProductID: "p1", Name: "Mochila", Price: 45.5}, 1)

			So(state.Cart, ShouldHaveLength, 1)
			So(state.Cart[0].Quantity, ShouldEqual, 2)
		})

		Convey("快照是副本，修改不影响状态", func() {
			state.AddToCart(PendingProduct{ProductID: "p1", Name: "Mochila", Price: 45.5}, 1)
			snapshot := state.CartSnapshot()
			snapshot.Items[0].Quantity = 99

			So(state.Cart[0].Quantity, ShouldEqual, 1)
		})
	})
}

func TestStateMetadataRoundtrip(t *testing.T) {
	Convey("状态元数据镜像测试", t, func() {
		state := NewState("conv-1", "tienda-1")
		state.Stage = StageCartOpen
		state.AddToCart(PendingProduct{ProductID: "p1", Name: "Mochila", Price: 45.5}, 2)

		md := state.Metadata()
		So(md, ShouldContainKey, "dialogue_state")

		Convey("从元数据重建出等价状态", func() {
			recovered, ok := StateFromMetadata(md)
			So(ok, ShouldBeTrue)
			So(recovered.ConversationID, ShouldEqual, "conv-1")
			So(recovered.TenantID, ShouldEqual, "tienda-1")
			So(recovered.Stage, ShouldEqual, StageCartOpen)
			So(recovered.Cart, ShouldHaveLength, 1)
			So(recovered.Cart[0].Quantity, ShouldEqual, 2)
		})

		Convey("缺失或损坏的元数据重建失败", func() {
			_, ok := StateFromMetadata(map[string]any{})
			So(ok, ShouldBeFalse)

			_, ok = StateFromMetadata(map[string]any{"dialogue_state": "garbage"})
			So(ok, ShouldBeFalse)
		})
	})
}

func TestStateTerminal(t *testing.T) {
	Convey("终止阶段判断测试", t, func() {
		state := NewState("conv-1", "tienda-1")
		So(state.Terminal(), ShouldBeFalse)

		state.Stage = StageCompleted
		So(state.Terminal(), ShouldBeTrue)

		state.Stage = StageCancelled
		So(state.Terminal(), ShouldBeTrue)

		state.Stage = StageAwaitingCheckout
		So(state.Terminal(), ShouldBeFalse)
	})
}
