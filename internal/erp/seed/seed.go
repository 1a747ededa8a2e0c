// Package seed 从YAML文件加载演示数据，记录之间按编码引用
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// File 种子文件结构
type File struct {
	Products         []ProductYAML    `yaml:"products"`
	Parties          []PartyYAML      `yaml:"parties"`
	BOMs             []BOMYAML        `yaml:"boms"`
	Productions      []ProductionYAML `yaml:"productions"`
	Projects         []ProjectYAML    `yaml:"projects"`
	Purchases        []PurchaseYAML   `yaml:"purchases"`
	PurchaseRequests []RequestYAML    `yaml:"purchase_requests"`
}

type ProductYAML struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
	Unit string `yaml:"unit,omitempty"`
}

type PartyYAML struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type BOMYAML struct {
	Code   string      `yaml:"code"`
	Name   string      `yaml:"name"`
	Inputs []InputYAML `yaml:"inputs"`
}

type InputYAML struct {
	Product  string  `yaml:"product"`
	Quantity float64 `yaml:"quantity"`
	Unit     string  `yaml:"unit,omitempty"`
}

type ProductionYAML struct {
	Code        string  `yaml:"code"`
	Product     string  `yaml:"product"`
	BOM         string  `yaml:"bom"`
	Quantity    float64 `yaml:"quantity"`
	PlannedDate string  `yaml:"planned_date,omitempty"`
	State       string  `yaml:"state,omitempty"`
}

type ProjectYAML struct {
	Code        string   `yaml:"code"`
	Name        string   `yaml:"name"`
	Status      string   `yaml:"status,omitempty"`
	BOMs        []string `yaml:"boms,omitempty"`
	Productions []string `yaml:"productions,omitempty"`
}

type PurchaseYAML struct {
	Number       string     `yaml:"number"`
	Party        string     `yaml:"party"`
	State        string     `yaml:"state,omitempty"`
	DeliveryDate string     `yaml:"delivery_date,omitempty"`
	Project      string     `yaml:"project,omitempty"`
	Lines        []LineYAML `yaml:"lines"`
}

type LineYAML struct {
	Product     string  `yaml:"product,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Quantity    float64 `yaml:"quantity"`
	UnitPrice   string  `yaml:"unit_price,omitempty"`
}

type RequestYAML struct {
	Code     string  `yaml:"code"`
	Product  string  `yaml:"product"`
	Quantity float64 `yaml:"quantity"`
	State    string  `yaml:"state,omitempty"`
	Purchase string  `yaml:"purchase,omitempty"`
	Project  string  `yaml:"project,omitempty"`
}

// Dataset 解析并解析引用后的实体
type Dataset struct {
	Products           []entity.Product
	Parties            []entity.Party
	BOMs               []entity.BOM
	Productions        []entity.Production
	Projects           []entity.Project
	ProjectBOMs        []entity.ProjectBOM
	ProjectProductions []entity.ProjectProduction
	Purchases          []entity.Purchase
	PurchaseRequests   []entity.PurchaseRequest
}

// LoadFile 读取并解析种子文件
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse 解析YAML并把编码引用换成ID
func Parse(data []byte) (*Dataset, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return f.resolve()
}

type resolver struct {
	products    map[string]*entity.Product
	parties     map[string]string
	boms        map[string]string
	productions map[string]string
	projects    map[string]string
	purchases   map[string]string
}

func lookup(m map[string]string, kind, code string) (string, error) {
	id, ok := m[code]
	if !ok {
		return "", fmt.Errorf("unknown %s %q", kind, code)
	}
	return id, nil
}

func (r *resolver) product(code string) (*entity.Product, error) {
	p, ok := r.products[code]
	if !ok {
		return nil, fmt.Errorf("unknown product %q", code)
	}
	return p, nil
}

func (r *resolver) optional(m map[string]string, kind, code string) (*string, error) {
	if code == "" {
		return nil, nil
	}
	id, err := lookup(m, kind, code)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &t, nil
}

func (f *File) resolve() (*Dataset, error) {
	r := &resolver{
		products:    make(map[string]*entity.Product),
		parties:     make(map[string]string),
		boms:        make(map[string]string),
		productions: make(map[string]string),
		projects:    make(map[string]string),
		purchases:   make(map[string]string),
	}
	ds := &Dataset{}

	for _, p := range f.Products {
		product := entity.Product{ID: uuid.New().String(), Code: p.Code, Name: p.Name, Unit: p.Unit}
		if product.Unit == "" {
			product.Unit = "pcs"
		}
		ds.Products = append(ds.Products, product)
	}
	for i := range ds.Products {
		r.products[ds.Products[i].Code] = &ds.Products[i]
	}

	for _, p := range f.Parties {
		party := entity.Party{ID: uuid.New().String(), Code: p.Code, Name: p.Name}
		r.parties[p.Code] = party.ID
		ds.Parties = append(ds.Parties, party)
	}

	for _, b := range f.BOMs {
		bom := entity.BOM{ID: uuid.New().String(), Code: b.Code, Name: b.Name}
		for i, in := range b.Inputs {
			product, err := r.product(in.Product)
			if err != nil {
				return nil, fmt.Errorf("bom %s: %w", b.Code, err)
			}
			unit := in.Unit
			if unit == "" {
				unit = product.Unit
			}
			bom.Inputs = append(bom.Inputs, entity.BOMInput{
				ID: uuid.New().String(), BOMID: bom.ID, ProductID: product.ID,
				Quantity: in.Quantity, Unit: unit, Sequence: i + 1,
			})
		}
		r.boms[b.Code] = bom.ID
		ds.BOMs = append(ds.BOMs, bom)
	}

	for _, p := range f.Productions {
		product, err := r.product(p.Product)
		if err != nil {
			return nil, fmt.Errorf("production %s: %w", p.Code, err)
		}
		bomID, err := r.optional(r.boms, "bom", p.BOM)
		if err != nil {
			return nil, fmt.Errorf("production %s: %w", p.Code, err)
		}
		planned, err := parseDate(p.PlannedDate)
		if err != nil {
			return nil, fmt.Errorf("production %s: %w", p.Code, err)
		}
		production := entity.Production{
			ID: uuid.New().String(), Code: p.Code, ProductID: product.ID, BOMID: bomID,
			Quantity: p.Quantity, PlannedDate: planned, State: p.State,
		}
		if production.State == "" {
			production.State = entity.ProductionStateDraft
		}
		r.productions[p.Code] = production.ID
		ds.Productions = append(ds.Productions, production)
	}

	for _, p := range f.Projects {
		project := entity.Project{ID: uuid.New().String(), Code: p.Code, Name: p.Name, Status: p.Status, CreatedBy: "seed"}
		if project.Status == "" {
			project.Status = entity.ProjectStatusOpened
		}
		for _, code := range p.BOMs {
			bomID, err := lookup(r.boms, "bom", code)
			if err != nil {
				return nil, fmt.Errorf("project %s: %w", p.Code, err)
			}
			ds.ProjectBOMs = append(ds.ProjectBOMs, entity.ProjectBOM{ProjectID: project.ID, BOMID: bomID})
		}
		// 关联时间按列表顺序递增，第一个生产单即列表首项
		linkedAt := time.Now()
		for i, code := range p.Productions {
			productionID, err := lookup(r.productions, "production", code)
			if err != nil {
				return nil, fmt.Errorf("project %s: %w", p.Code, err)
			}
			ds.ProjectProductions = append(ds.ProjectProductions, entity.ProjectProduction{
				ProjectID: project.ID, ProductionID: productionID, CreatedAt: linkedAt.Add(time.Duration(i) * time.Millisecond),
			})
		}
		r.projects[p.Code] = project.ID
		ds.Projects = append(ds.Projects, project)
	}

	for _, p := range f.Purchases {
		partyID, err := lookup(r.parties, "party", p.Party)
		if err != nil {
			return nil, fmt.Errorf("purchase %s: %w", p.Number, err)
		}
		projectID, err := r.optional(r.projects, "project", p.Project)
		if err != nil {
			return nil, fmt.Errorf("purchase %s: %w", p.Number, err)
		}
		delivery, err := parseDate(p.DeliveryDate)
		if err != nil {
			return nil, fmt.Errorf("purchase %s: %w", p.Number, err)
		}
		purchase := entity.Purchase{
			ID: uuid.New().String(), Number: p.Number, PartyID: partyID,
			State: p.State, DeliveryDate: delivery, ProjectID: projectID,
		}
		if purchase.State == "" {
			purchase.State = entity.PurchaseStateDraft
		}
		for i, l := range p.Lines {
			line := entity.PurchaseLine{
				ID: uuid.New().String(), PurchaseID: purchase.ID, Description: l.Description,
				Quantity: l.Quantity, UnitPrice: decimal.Zero, Sequence: i + 1,
			}
			if l.Product != "" {
				product, err := r.product(l.Product)
				if err != nil {
					return nil, fmt.Errorf("purchase %s: %w", p.Number, err)
				}
				line.ProductID = &product.ID
			}
			if l.UnitPrice != "" {
				price, err := decimal.NewFromString(l.UnitPrice)
				if err != nil {
					return nil, fmt.Errorf("purchase %s: invalid unit price %q: %w", p.Number, l.UnitPrice, err)
				}
				line.UnitPrice = price
			}
			purchase.Lines = append(purchase.Lines, line)
		}
		r.purchases[p.Number] = purchase.ID
		ds.Purchases = append(ds.Purchases, purchase)
	}

	for _, p := range f.PurchaseRequests {
		product, err := r.product(p.Product)
		if err != nil {
			return nil, fmt.Errorf("purchase request %s: %w", p.Code, err)
		}
		purchaseID, err := r.optional(r.purchases, "purchase", p.Purchase)
		if err != nil {
			return nil, fmt.Errorf("purchase request %s: %w", p.Code, err)
		}
		projectID, err := r.optional(r.projects, "project", p.Project)
		if err != nil {
			return nil, fmt.Errorf("purchase request %s: %w", p.Code, err)
		}
		request := entity.PurchaseRequest{
			ID: uuid.New().String(), Code: p.Code, ProductID: product.ID, Quantity: p.Quantity,
			Unit: product.Unit, State: p.State, PurchaseID: purchaseID, ProjectID: projectID,
			Origin: "seed", CreatedBy: "seed",
		}
		if request.State == "" {
			request.State = entity.PRStateDraft
		}
		ds.PurchaseRequests = append(ds.PurchaseRequests, request)
	}

	return ds, nil
}

// Apply 在一个事务中写入全部数据
func (ds *Dataset) Apply(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batches := []struct {
			name  string
			value interface{}
			n     int
		}{
			{"products", &ds.Products, len(ds.Products)},
			{"parties", &ds.Parties, len(ds.Parties)},
			{"boms", &ds.BOMs, len(ds.BOMs)},
			{"productions", &ds.Productions, len(ds.Productions)},
			{"projects", &ds.Projects, len(ds.Projects)},
			{"project boms", &ds.ProjectBOMs, len(ds.ProjectBOMs)},
			{"project productions", &ds.ProjectProductions, len(ds.ProjectProductions)},
			{"purchases", &ds.Purchases, len(ds.Purchases)},
			{"purchase requests", &ds.PurchaseRequests, len(ds.PurchaseRequests)},
		}
		for _, b := range batches {
			if b.n == 0 {
				continue
			}
			if err := tx.Create(b.value).Error; err != nil {
				return fmt.Errorf("seed %s: %w", b.name, err)
			}
		}
		return nil
	})
}
