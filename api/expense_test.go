package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"expensight/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupMockDB(t *testing.T) (*store.Store, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return store.New(gormDB), mock, func() {
		sqlDB.Close()
	}
}

func setUserIDMiddleware(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

type countingInvalidator struct {
	mu    sync.Mutex
	users []uint
}

func (i *countingInvalidator) Invalidate(userID uint) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.users = append(i.users, userID)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

var expenseColumns = []string{"id", "user_id", "merchant_name", "date", "total_amount", "category", "currency", "created_at", "updated_at"}

func TestExpenseHandler_Create(t *testing.T) {
	s, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `expenses`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `expense_items`").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	inv := &countingInvalidator{}
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/expenses", NewExpenseHandler(s, inv, time.UTC).Create)

	body := `{"merchant_name":"Corner Market","date":"06/01/2024","category":"Groceries","items":[` +
		`{"description":"apples","quantity":2,"total_price":3},` +
		`{"description":"cake","total_price":6,"category":"Food"}]}`
	req := httptest.NewRequest("POST", "/expenses", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "created", resp["message"])
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, 9.0, data["total_amount"])
	assert.Equal(t, "USD", data["currency"])
	assert.Equal(t, "manual", data["source"])
	assert.Equal(t, []uint{1}, inv.users)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseHandler_Create_Validation(t *testing.T) {
	s, _, cleanup := setupMockDB(t)
	defer cleanup()

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/expenses", NewExpenseHandler(s, &countingInvalidator{}, time.UTC).Create)

	cases := map[string]string{
		"no amount":      `{"merchant_name":"x"}`,
		"bad date":       `{"total_amount":5,"date":"someday"}`,
		"negative total": `{"total_amount":-5}`,
		"bad currency":   `{"total_amount":5,"currency":"DOLLARS"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/expenses", bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, 400, w.Code)
		})
	}
}

func TestExpenseHandler_List(t *testing.T) {
	s, mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE user_id = \\?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(expenseColumns).
			AddRow(1, 1, "Cafe", "2024-06-01", 4.5, "Food", "USD", now, now).
			AddRow(2, 1, "Bus", "2024-06-10", 2.75, "Transport", "USD", now, now).
			AddRow(3, 1, "Rent", "2024-05-01", 1500, "Housing", "USD", now, now).
			AddRow(4, 1, "Bakery", "2024-06-10", 3, "food", "USD", now, now))
	mock.ExpectQuery("SELECT \\* FROM `expense_items`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "expense_id"}))

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.GET("/expenses", NewExpenseHandler(s, &countingInvalidator{}, time.UTC).List)

	req := httptest.NewRequest("GET", "/expenses?start=2024-06-01&end=2024-06-30&page_size=2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 3.0, data["total"])
	list := data["list"].([]interface{})
	require.Len(t, list, 2)
	// newest first, id breaks the tie on the same day
	assert.Equal(t, 4.0, list[0].(map[string]interface{})["id"])
	assert.Equal(t, 2.0, list[1].(map[string]interface{})["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseHandler_List_InvalidRange(t *testing.T) {
	s, _, cleanup := setupMockDB(t)
	defer cleanup()

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.GET("/expenses", NewExpenseHandler(s, &countingInvalidator{}, time.UTC).List)

	req := httptest.NewRequest("GET", "/expenses?start=2024-06-30&end=2024-06-01", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, decode(t, w)["message"], "start must not be after end")
}

func TestExpenseHandler_Delete(t *testing.T) {
	s, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `expenses` SET `deleted_at`").
		WithArgs(sqlmock.AnyArg(), 7, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `expenses` SET `deleted_at`").
		WithArgs(sqlmock.AnyArg(), 8, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inv := &countingInvalidator{}
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.DELETE("/expenses/:id", NewExpenseHandler(s, inv, time.UTC).Delete)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/expenses/7", nil))
	assert.Equal(t, 200, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/expenses/8", nil))
	assert.Equal(t, 404, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/expenses/abc", nil))
	assert.Equal(t, 400, w.Code)

	assert.Equal(t, []uint{1}, inv.users)
	require.NoError(t, mock.ExpectationsWereMet())
}
