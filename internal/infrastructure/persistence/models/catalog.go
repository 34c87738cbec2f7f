package models

import (
	"github.com/ledgerlink/backend/internal/domain/catalog"
)

// ProductModel is the persistence model for catalog products.
type ProductModel struct {
	BaseModel
	Code         string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name         string `gorm:"type:varchar(255);not null"`
	Unit         string `gorm:"type:varchar(20)"`
	BatchManaged bool   `gorm:"not null;default:true"`
	Active       bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseEntity:   m.BaseModel.ToDomain(),
		Code:         m.Code,
		Name:         m.Name,
		Unit:         m.Unit,
		BatchManaged: m.BatchManaged,
		Active:       m.Active,
	}
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Code = p.Code
	m.Name = p.Name
	m.Unit = p.Unit
	m.BatchManaged = p.BatchManaged
	m.Active = p.Active
}

// LocationModel is the persistence model for stock locations.
type LocationModel struct {
	BaseModel
	Code            string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name            string `gorm:"type:varchar(255);not null"`
	WarehouseCode   string `gorm:"type:varchar(50);not null;index:idx_location_warehouse_bin,priority:1"`
	BinCode         string `gorm:"type:varchar(50);index:idx_location_warehouse_bin,priority:2"`
	CounterpartCode string `gorm:"type:varchar(50);index"`
	Active          bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (LocationModel) TableName() string {
	return "locations"
}

// ToDomain converts the persistence model to a domain Location
func (m *LocationModel) ToDomain() *catalog.Location {
	return &catalog.Location{
		BaseEntity:      m.BaseModel.ToDomain(),
		Code:            m.Code,
		Name:            m.Name,
		WarehouseCode:   m.WarehouseCode,
		BinCode:         m.BinCode,
		CounterpartCode: m.CounterpartCode,
		Active:          m.Active,
	}
}

// FromDomain populates the persistence model from a domain Location
func (m *LocationModel) FromDomain(l *catalog.Location) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.Code = l.Code
	m.Name = l.Name
	m.WarehouseCode = l.WarehouseCode
	m.BinCode = l.BinCode
	m.CounterpartCode = l.CounterpartCode
	m.Active = l.Active
}
