package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turnon/wattwise/measures"
	"github.com/turnon/wattwise/store/common"
)

const (
	invalidDeviceMessage = "Device identifier is not valid for logged user"
	// activeWindow 最近一次上报在此时间内视为在线
	activeWindow = time.Minute
)

type createDeviceRequest struct {
	Name     string `json:"name" binding:"required"`
	DeviceID string `json:"device_id"`
}

type stateRequest struct {
	TurnedOn *bool `json:"turned_on"`
}

type measureRequest struct {
	Timestamp *time.Time `json:"timestamp"`
	Voltage   *float64   `json:"voltage"`
	Current   *float64   `json:"current"`
}

type deviceResponse struct {
	DeviceID string             `json:"device_id"`
	Name     string             `json:"name"`
	TurnedOn bool               `json:"turned_on"`
	Active   bool               `json:"active"`
	Measures []measures.Summary `json:"measures"`
}

// toMeasure 校验并转换，prefix用于批量时标明下标
func (req measureRequest) toMeasure(prefix string) (common.Measure, []string) {
	var v []string
	if req.Timestamp == nil {
		v = append(v, prefix+"timestamp must not be null")
	}
	if req.Voltage == nil {
		v = append(v, prefix+"voltage must not be null")
	} else if *req.Voltage < 0 {
		v = append(v, prefix+"voltage must be greater than or equal to 0")
	}
	if req.Current == nil {
		v = append(v, prefix+"current must not be null")
	} else if *req.Current < 0 {
		v = append(v, prefix+"current must be greater than or equal to 0")
	}
	if len(v) > 0 {
		return common.Measure{}, v
	}
	return common.Measure{Timestamp: req.Timestamp.UTC(), Voltage: *req.Voltage, Current: *req.Current}, nil
}

// ownsDevice 设备是否属于当前用户，出错时已写响应
func (api *ApplicationInterface) ownsDevice(c *gin.Context, deviceID, message string) bool {
	ok, err := api.store.Devices().ExistsForUser(c.Request.Context(), deviceID, authenticatedUserID(c))
	if err != nil {
		api.serverError(c, err, message)
		return false
	}
	if !ok {
		badRequest(c, invalidDeviceMessage)
		return false
	}
	return true
}

// minutesParam 读取minutes参数，出错时已写响应
func minutesParam(c *gin.Context) (int, bool) {
	minutes, err := strconv.Atoi(c.Query("minutes"))
	if err != nil || minutes <= 0 {
		badRequest(c, "minutes must be a positive integer")
		return 0, false
	}
	return minutes, true
}

// createDevice 新建设备
func (api *ApplicationInterface) createDevice(c *gin.Context) {
	var req createDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logWarn(c, err)
		validationFailed(c, bindingViolations(err))
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = uuid.NewString()
	}

	ctx := c.Request.Context()
	userID := authenticatedUserID(c)
	exists, err := api.store.Devices().ExistsForUser(ctx, req.DeviceID, userID)
	if err != nil {
		api.serverError(c, err, "An error has occurred while creating the device")
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"message": "There is another device with the same device_id for logged user"})
		return
	}

	device := common.Device{DeviceID: req.DeviceID, Name: req.Name}
	if err := api.store.Devices().Create(ctx, device, userID); err != nil {
		api.serverError(c, err, "An error has occurred while creating the device")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": req.DeviceID})
}

// listDevices 用户的全部设备，带minutes参数时附带汇总
func (api *ApplicationInterface) listDevices(c *gin.Context) {
	minutes := 0
	if c.Query("minutes") != "" {
		var ok bool
		if minutes, ok = minutesParam(c); !ok {
			return
		}
	}

	ctx := c.Request.Context()
	devices, err := api.store.Devices().UserDevices(ctx, authenticatedUserID(c))
	if err != nil {
		api.serverError(c, err, "An error has occurred while getting user devices")
		return
	}

	now := api.clock.Now()
	res := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		resp := deviceResponse{
			DeviceID: d.DeviceID,
			Name:     d.Name,
			TurnedOn: d.TurnedOn,
			Active:   d.LastStatusUpdate != nil && now.Sub(*d.LastStatusUpdate) <= activeWindow,
			Measures: []measures.Summary{},
		}
		if minutes > 0 {
			resp.Measures, err = api.summarize(ctx, now, minutes, func(ctx context.Context, since time.Time) ([]common.Measure, error) {
				return api.store.Measures().Since(ctx, d.DeviceID, since)
			})
			if err != nil {
				api.serverError(c, err, "An error has occurred while getting user devices")
				return
			}
		}
		res = append(res, resp)
	}
	c.JSON(http.StatusOK, res)
}

// deviceToken 给设备签发token
func (api *ApplicationInterface) deviceToken(c *gin.Context) {
	deviceID := c.Param("device_id")
	message := "An error has occurred while creating the device token"
	if !api.ownsDevice(c, deviceID, message) {
		return
	}
	token, err := api.auth.signDevice(deviceID, authenticatedUserID(c))
	if err != nil {
		api.serverError(c, err, message)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// updateState 设备上报开关状态
func (api *ApplicationInterface) updateState(c *gin.Context) {
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TurnedOn == nil {
		badRequest(c, "turned_on must be a valid boolean")
		return
	}

	deviceID := c.Param("device_id")
	message := "An error has occurred while updating the device state"
	if !api.ownsDevice(c, deviceID, message) {
		return
	}
	err := api.store.Devices().UpdateState(c.Request.Context(), deviceID, authenticatedUserID(c), *req.TurnedOn, api.clock.Now())
	if err != nil {
		api.serverError(c, err, message)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// getState 查询开关状态
func (api *ApplicationInterface) getState(c *gin.Context) {
	deviceID := c.Param("device_id")
	message := "An error has occurred while getting the device state"
	if !api.ownsDevice(c, deviceID, message) {
		return
	}
	turnedOn, err := api.store.Devices().State(c.Request.Context(), deviceID, authenticatedUserID(c))
	if err != nil {
		api.serverError(c, err, message)
		return
	}
	c.JSON(http.StatusOK, gin.H{"turned_on": turnedOn})
}

// addMeasure 上报一个测量值
func (api *ApplicationInterface) addMeasure(c *gin.Context) {
	var req measureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logWarn(c, err)
		validationFailed(c, bindingViolations(err))
		return
	}
	m, violations := req.toMeasure("")
	if len(violations) > 0 {
		validationFailed(c, violations)
		return
	}
	api.saveMeasures(c, []common.Measure{m})
}

// addMeasures 批量上报
func (api *ApplicationInterface) addMeasures(c *gin.Context) {
	var reqs []measureRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		logWarn(c, err)
		validationFailed(c, bindingViolations(err))
		return
	}

	ms := make([]common.Measure, 0, len(reqs))
	var violations []string
	for i, req := range reqs {
		m, v := req.toMeasure(fmt.Sprintf("measures[%d].", i))
		violations = append(violations, v...)
		ms = append(ms, m)
	}
	if len(violations) > 0 {
		validationFailed(c, violations)
		return
	}
	api.saveMeasures(c, ms)
}

func (api *ApplicationInterface) saveMeasures(c *gin.Context, ms []common.Measure) {
	deviceID := c.Param("device_id")
	message := "An error has occurred while registering measures"
	if !api.ownsDevice(c, deviceID, message) {
		return
	}
	if err := api.store.Measures().Create(c.Request.Context(), deviceID, authenticatedUserID(c), ms); err != nil {
		api.serverError(c, err, message)
		return
	}
	c.JSON(http.StatusCreated, gin.H{})
}

// getMeasures 单个设备最近几分钟的汇总
func (api *ApplicationInterface) getMeasures(c *gin.Context) {
	minutes, ok := minutesParam(c)
	if !ok {
		return
	}
	deviceID := c.Param("device_id")
	message := "An error has occurred while getting measures"
	if !api.ownsDevice(c, deviceID, message) {
		return
	}

	res, err := api.summarize(c.Request.Context(), api.clock.Now(), minutes, func(ctx context.Context, since time.Time) ([]common.Measure, error) {
		return api.store.Measures().Since(ctx, deviceID, since)
	})
	if err != nil {
		api.serverError(c, err, message)
		return
	}
	c.JSON(http.StatusOK, res)
}

// getAllMeasures 用户全部设备最近几分钟的汇总
func (api *ApplicationInterface) getAllMeasures(c *gin.Context) {
	minutes, ok := minutesParam(c)
	if !ok {
		return
	}
	userID := authenticatedUserID(c)
	res, err := api.summarize(c.Request.Context(), api.clock.Now(), minutes, func(ctx context.Context, since time.Time) ([]common.Measure, error) {
		return api.store.Measures().UserSince(ctx, userID, since)
	})
	if err != nil {
		api.serverError(c, err, "An error has occurred while getting measures")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (api *ApplicationInterface) summarize(ctx context.Context, now time.Time, minutes int,
	load func(context.Context, time.Time) ([]common.Measure, error)) ([]measures.Summary, error) {
	from := now.Add(-time.Duration(minutes) * time.Minute)
	ms, err := load(ctx, from)
	if err != nil {
		return nil, err
	}
	return measures.Summarize(ms, from, now), nil
}
