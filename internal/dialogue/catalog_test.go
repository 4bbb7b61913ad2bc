package dialogue

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"tendero/internal/model"
)

func testProducts() []*model.Product {
	return []*model.Product{
		{ID: "p1", Name: "Mochila Urbana", Category: "accesorios", Description: "Mochila impermeable para laptop de 15 pulgadas", Price: 45.5, Stock: 10},
		{ID: "p2", Name: "Asus ROG Strix 16", Category: "laptops", Description: "Laptop gamer con pantalla de 16 pulgadas", Price: 1899, Stock: 3},
		{ID: "p3", Name: "Gorra Clásica", Category: "accesorios", Description: "Gorra de algodón ajustable", Price: 12, Stock: 50},
	}
}

func TestMatcherBest(t *testing.T) {
	Convey("商品模糊匹配测试", t, func() {
		matcher, err := NewMatcher()
		So(err, ShouldBeNil)

		products := testProducts()

		Convey("商品名整体出现时确定命中", func() {
			best, score := matcher.Best("quiero comprar la Mochila Urbana por favor", products)
			So(best, ShouldNotBeNil)
			So(best.ID, ShouldEqual, "p1")
			So(score, ShouldEqual, 1)
		})

		Convey("口语化的不完整指称也能命中", func() {
			best, _ := matcher.Best("quiero la strix 16", products)
			So(best, ShouldNotBeNil)
			So(best.ID, ShouldEqual, "p2")
		})

		Convey("与目录无关的话术不命中", func() {
			best, _ := matcher.Best("cuál es el horario de la tienda", products)
			So(best, ShouldBeNil)
		})

		Convey("空目录不命中", func() {
			best, _ := matcher.Best("quiero la mochila", nil)
			So(best, ShouldBeNil)
		})
	})
}

func TestMatcherScore(t *testing.T) {
	Convey("商品打分测试", t, func() {
		matcher, err := NewMatcher()
		So(err, ShouldBeNil)

		product := testProducts()[0]

		Convey("分数落在 [0, 1] 区间", func() {
			So(matcher.Score("mochila", product), ShouldBeBetweenOrEqual, 0, 1)
			So(matcher.Score("", product), ShouldEqual, 0)
		})

		Convey("名称命中权重高于描述命中", func() {
			nameHit := matcher.Score("mochila", product)
			descHit := matcher.Score("impermeable", product)
			So(nameHit, ShouldBeGreaterThan, descHit)
		})
	})
}
