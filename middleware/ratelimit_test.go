package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimit_ByIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// 200ms window, at most 2
	router := gin.New()
	router.Use(RateLimit(2, 200*time.Millisecond))
	router.POST("/coach", func(c *gin.Context) {
		c.String(200, "ok")
	})

	doReq := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/coach", nil)
		req.Header.Set("X-Real-IP", ip)
		req.RemoteAddr = ip + ":12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w1 := doReq("192.168.1.1")
	w2 := doReq("192.168.1.1")
	w3 := doReq("192.168.1.1")

	assert.Equal(t, 200, w1.Code)
	assert.Equal(t, 200, w2.Code)
	assert.Equal(t, http.StatusTooManyRequests, w3.Code)
	assert.Contains(t, w3.Body.String(), "too many requests")

	// other IPs are independent
	w4 := doReq("192.168.1.2")
	w5 := doReq("192.168.1.2")
	assert.Equal(t, 200, w4.Code)
	assert.Equal(t, 200, w5.Code)

	// window expires
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 200, doReq("192.168.1.1").Code)
}

func TestRateLimit_ByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := RateLimit(1, time.Minute)
	router := gin.New()
	router.POST("/coach/:uid", func(c *gin.Context) {
		if c.Param("uid") == "1" {
			c.Set(ContextUserID, uint(1))
		} else {
			c.Set(ContextUserID, uint(2))
		}
		limiter(c)
		if !c.IsAborted() {
			c.String(200, "ok")
		}
	})

	doReq := func(uid string) int {
		req := httptest.NewRequest("POST", "/coach/"+uid, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, 200, doReq("1"))
	assert.Equal(t, http.StatusTooManyRequests, doReq("1"))
	// same IP, different user
	assert.Equal(t, 200, doReq("2"))
}
