package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/turnon/wattwise/scheduling"
)

const deviceNotFoundMessage = "Provided device_id does not match any of the user devices"

// schedulingError 按错误类型返回响应
func (api *ApplicationInterface) schedulingError(c *gin.Context, err error, message string) {
	var invalid *scheduling.ValidationError
	switch {
	case errors.As(err, &invalid):
		validationFailed(c, invalid.Violations)
	case errors.Is(err, scheduling.ErrDeviceNotFound):
		badRequest(c, deviceNotFoundMessage)
	default:
		api.serverError(c, err, message)
	}
}

// setSchedulingTasks 整体替换设备的调度任务
func (api *ApplicationInterface) setSchedulingTasks(c *gin.Context) {
	var docs []scheduling.TaskDocument
	if err := c.ShouldBindJSON(&docs); err != nil {
		logWarn(c, err)
		validationFailed(c, []string{"tasks must be an array of scheduling tasks"})
		return
	}

	err := api.updater.SetDocuments(c.Request.Context(), c.Param("device_id"), authenticatedUserID(c), docs)
	if err != nil {
		api.schedulingError(c, err, "An error has occurred while updating device scheduling")
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// getSchedulingTasks 设备的全部调度任务
func (api *ApplicationInterface) getSchedulingTasks(c *gin.Context) {
	tasks, err := api.retriever.Tasks(c.Request.Context(), c.Param("device_id"), authenticatedUserID(c))
	if err != nil {
		api.schedulingError(c, err, "An error has occurred while getting device scheduling")
		return
	}
	c.JSON(http.StatusOK, scheduling.ToDocuments(tasks))
}

// getNextSchedulingAction 设备的下一个动作，没有时返回{}
func (api *ApplicationInterface) getNextSchedulingAction(c *gin.Context) {
	action, err := api.retriever.NextAction(c.Request.Context(), c.Param("device_id"), authenticatedUserID(c))
	if err != nil {
		api.schedulingError(c, err, "An error has occurred while getting device next scheduling action")
		return
	}
	if action == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, action)
}
