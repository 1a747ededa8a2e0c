package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"github.com/Epitheton-ltd/project-bom/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_project_bom"
	JWTSecret  = "project-bom-test-secret"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB opens a connection bound to a fresh schema and migrates all tables.
// The schema is dropped when the test finishes. Tests are skipped when no
// database is reachable.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "project_bom")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable connect_timeout=3",
		host, port, user, password, dbname)

	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("database unavailable: %v", err)
	}
	if err := setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)).Error; err != nil {
		t.Skipf("database unavailable: %v", err)
	}
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// search_path in DSN so ALL pooled connections use the test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret, ""))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string, permissions []string) string {
	if permissions == nil {
		permissions = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"perms": permissions,
		"iss":   "project-bom",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default test user with all permissions
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "Test User", []string{"*"})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// Fixture 一组相互关联的测试数据
type Fixture struct {
	Project    *entity.Project
	BOM        *entity.BOM
	Production *entity.Production
	Screw      *entity.Product
	Plate      *entity.Product
	Supplier   *entity.Party
	Purchase   *entity.Purchase
	Request    *entity.PurchaseRequest
}

// SeedProjectFixture 创建项目、BOM（螺丝×4、钢板×1）、数量为2的生产单、
// 一张含8个螺丝的确认采购单，以及一张1块钢板的草稿采购申请，并全部关联到项目
func SeedProjectFixture(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()

	planned := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fx := &Fixture{
		Screw:    &entity.Product{ID: "prod-screw", Code: "SCREW-M3", Name: "螺丝M3", Unit: "pcs"},
		Plate:    &entity.Product{ID: "prod-plate", Code: "PLATE-01", Name: "钢板", Unit: "pcs"},
		Supplier: &entity.Party{ID: "party-acme", Code: "ACME", Name: "Acme"},
		Project: &entity.Project{
			ID: "prj-test-001", Code: "P-TEST", Name: "测试项目",
			Status: entity.ProjectStatusOpened, CreatedBy: "test-user",
		},
	}
	fx.BOM = &entity.BOM{ID: "bom-test-001", Code: "BOM-T1", Name: "测试BOM", Inputs: []entity.BOMInput{
		{ID: "bi-1", BOMID: "bom-test-001", ProductID: fx.Screw.ID, Quantity: 4, Unit: "pcs", Sequence: 1},
		{ID: "bi-2", BOMID: "bom-test-001", ProductID: fx.Plate.ID, Quantity: 1, Unit: "pcs", Sequence: 2},
	}}
	bomID := fx.BOM.ID
	fx.Production = &entity.Production{
		ID: "mo-test-001", Code: "MO-T1", ProductID: fx.Plate.ID, BOMID: &bomID,
		Quantity: 2, PlannedDate: &planned, State: entity.ProductionStateWaiting,
	}
	screwID := fx.Screw.ID
	projectID := fx.Project.ID
	fx.Purchase = &entity.Purchase{
		ID: "po-test-001", Number: "PO-T1", PartyID: fx.Supplier.ID,
		State: entity.PurchaseStateConfirmed, ProjectID: &projectID,
		Lines: []entity.PurchaseLine{
			{ID: "pl-1", PurchaseID: "po-test-001", ProductID: &screwID, Quantity: 8, Sequence: 1},
		},
	}
	fx.Request = &entity.PurchaseRequest{
		ID: "pr-test-001", Code: "PR-T1", ProductID: fx.Plate.ID, Quantity: 1, Unit: "pcs",
		State: entity.PRStateDraft, ProjectID: &projectID,
	}

	for _, record := range []interface{}{
		fx.Screw, fx.Plate, fx.Supplier, fx.Project, fx.BOM, fx.Production, fx.Purchase, fx.Request,
		&entity.ProjectBOM{ProjectID: projectID, BOMID: bomID},
		&entity.ProjectProduction{ProjectID: projectID, ProductionID: fx.Production.ID},
	} {
		if err := db.Create(record).Error; err != nil {
			t.Fatalf("Failed to seed %T: %v", record, err)
		}
	}
	return fx
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
