package rest

import "github.com/gin-gonic/gin"

func NewApi(router *gin.Engine, images *ImageHandler) {
	imagesV1 := router.Group("images/v1")
	{
		imagesV1.GET("/", images.ListImages)
		imagesV1.GET("/:identifier", images.GetImage)
		imagesV1.GET("/:identifier/file", images.GetImageFile)
	}
}
