package dialogue

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClassifyReply(t *testing.T) {
	Convey("是/否识别测试", t, func() {
		Convey("西语肯定回复", func() {
			So(ClassifyReply("sí"), ShouldEqual, VerdictAffirmative)
			So(ClassifyReply("¡Claro!"), ShouldEqual, VerdictAffirmative)
			So(ClassifyReply("dale"), ShouldEqual, VerdictAffirmative)
			So(ClassifyReply("sí, agrégalo"), ShouldEqual, VerdictAffirmative)
		})

		Convey("英语肯定回复", func() {
			So(ClassifyReply("yes"), ShouldEqual, VerdictAffirmative)
			So(ClassifyReply("Sure, go ahead"), ShouldEqual, VerdictAffirmative)
			So(ClassifyReply("ok"), ShouldEqual, VerdictAffirmative)
		})

		Convey("否定回复", func() {
			So(ClassifyReply("no"), ShouldEqual, VerdictNegative)
			So(ClassifyReply("No, gracias."), ShouldEqual, VerdictNegative)
			So(ClassifyReply("nah"), ShouldEqual, VerdictNegative)
			So(ClassifyReply("not now"), ShouldEqual, VerdictNegative)
		})

		Convey("同时含肯定和否定词干时判为否定", func() {
			So(ClassifyReply("mejor no lo agregues"), ShouldEqual, VerdictNegative)
		})

		Convey("词边界不误判", func() {
			// 'know' 含子串 'no'，但不是独立的词
			So(ClassifyReply("I know that product"), ShouldEqual, VerdictUnclear)
		})

		Convey("模糊回复判为 unclear", func() {
			So(ClassifyReply("hmm tal vez"), ShouldEqual, VerdictUnclear)
			So(ClassifyReply(""), ShouldEqual, VerdictUnclear)
			So(ClassifyReply("¿cuánto cuesta?"), ShouldEqual, VerdictUnclear)
		})
	})
}

func TestIsCancel(t *testing.T) {
	Convey("取消识别测试", t, func() {
		So(IsCancel("cancelar"), ShouldBeTrue)
		So(IsCancel("quiero cancelar todo"), ShouldBeTrue)
		So(IsCancel("never mind"), ShouldBeTrue)
		So(IsCancel("sí"), ShouldBeFalse)
		So(IsCancel("quiero una mochila"), ShouldBeFalse)
	})
}
