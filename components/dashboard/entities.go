package dashboard

import (
	"fmt"
	"net/http"
	"strings"
)

// Entity codes for the built-in table views.
const (
	EntityDailyWork              = "daily-work"
	EntitySuppliers              = "suppliers"
	EntityMaterialInquiries      = "material-inquiries"
	EntityCustomerDeliveries     = "customer-deliveries"
	EntityCustomerOrders         = "customer-orders"
	EntityMaterialReplenishments = "material-replenishments"
)

// EntityEndpoints are the backend paths for one entity. Paths may contain ":id"
// which is replaced by the row id for update/delete calls.
type EntityEndpoints struct {
	List         string `json:"list" yaml:"list"`
	Create       string `json:"create" yaml:"create"`
	Update       string `json:"update" yaml:"update"`
	UpdateMethod string `json:"update_method,omitempty" yaml:"update_method,omitempty"`
	Delete       string `json:"delete" yaml:"delete"`
	DeleteMethod string `json:"delete_method,omitempty" yaml:"delete_method,omitempty"`
	Columns      string `json:"columns" yaml:"columns"`
	SaveColumns  string `json:"save_columns" yaml:"save_columns"`
}

// UpdateVerb returns the HTTP method used for updates (POST unless configured).
func (e EntityEndpoints) UpdateVerb() string {
	return methodOr(e.UpdateMethod, http.MethodPost)
}

// DeleteVerb returns the HTTP method used for deletes (POST unless configured).
func (e EntityEndpoints) DeleteVerb() string {
	return methodOr(e.DeleteMethod, http.MethodPost)
}

// WithID substitutes ":id" in path.
func WithID(path, id string) string {
	return strings.ReplaceAll(path, ":id", id)
}

func methodOr(method, fallback string) string {
	if method == "" {
		return fallback
	}
	return strings.ToUpper(method)
}

// StandardEndpoints builds the conventional endpoint set:
// /api/<entity>/get-data, add-<noun>, update-<noun>, delete-<noun> and the table-headers pair.
func StandardEndpoints(entity, noun string) EntityEndpoints {
	base := "/api/" + entity
	return EntityEndpoints{
		List:        base + "/get-data",
		Create:      base + "/add-" + noun,
		Update:      base + "/update-" + noun,
		Delete:      base + "/delete-" + noun,
		Columns:     "/api/table-headers/get-" + entity,
		SaveColumns: "/api/table-headers/update-" + entity,
	}
}

// EntityConfig parameterises the generic EntityTable for one business object.
type EntityConfig struct {
	Code           string            `json:"code" yaml:"code"`
	Name           string            `json:"name" yaml:"name"`
	Endpoints      EntityEndpoints   `json:"endpoints" yaml:"endpoints"`
	DefaultColumns ColumnSet         `json:"columns" yaml:"columns"`
	RequiredFields []string          `json:"required,omitempty" yaml:"required,omitempty"`
	Defaults       map[string]string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	StatusColumn   string            `json:"status_column,omitempty" yaml:"status_column,omitempty"`
	StatusRules    StatusRules       `json:"status_rules,omitempty" yaml:"status_rules,omitempty"`
	DateColumn     string            `json:"date_column,omitempty" yaml:"date_column,omitempty"`
	LiveSearch     bool              `json:"live_search" yaml:"live_search"`
	PageSize       int               `json:"page_size,omitempty" yaml:"page_size,omitempty"`
}

// Validate checks the configuration is usable.
func (c EntityConfig) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("dashboard: entity code is required")
	}
	if c.Endpoints.List == "" {
		return fmt.Errorf("dashboard: entity %s is missing a list endpoint", c.Code)
	}
	if err := c.DefaultColumns.Validate(); err != nil {
		return fmt.Errorf("dashboard: entity %s: %w", c.Code, err)
	}
	return nil
}

// DisplayName returns Name or the code.
func (c EntityConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Code
}

// RequiredLabel returns the label of a required field for messages.
func (c EntityConfig) RequiredLabel(field string) string {
	if col, ok := c.DefaultColumns.Lookup(field); ok && col.Label != "" {
		return col.Label
	}
	return field
}

func (c EntityConfig) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return DefaultPageSize
}

func (c EntityConfig) cacheKey(viewer ViewerContext) string {
	return "headers:" + c.Code + ":" + viewer.Scope()
}

func col(id, label string) ColumnDescriptor {
	return ColumnDescriptor{ID: id, Label: label, Visible: true}
}

func altCol(id, label, alt string) ColumnDescriptor {
	return ColumnDescriptor{ID: id, Label: label, Visible: true, AltKey: alt}
}

func hiddenCol(id, label string) ColumnDescriptor {
	return ColumnDescriptor{ID: id, Label: label}
}

// DefaultEntityConfigs returns the built-in entity table configurations.
func DefaultEntityConfigs() []EntityConfig {
	deliveryRules := DefaultStatusRules().With(StatusRules{"Dispatched": BadgeInfo, "Returned": BadgeDanger})
	return []EntityConfig{
		{
			Code:      EntityDailyWork,
			Name:      "Daily Work Report",
			Endpoints: StandardEndpoints(EntityDailyWork, "daily-work"),
			DefaultColumns: ColumnSet{
				col("date", "Date"),
				altCol("employeeName", "Employee", "employee"),
				col("task", "Task"),
				col("hoursWorked", "Hours"),
				col("remarks", "Remarks"),
			},
			RequiredFields: []string{"date", "employeeName", "task"},
			DateColumn:     "date",
			PageSize:       10,
		},
		{
			Code:      EntitySuppliers,
			Name:      "Supplier List",
			Endpoints: StandardEndpoints(EntitySuppliers, "supplier"),
			DefaultColumns: ColumnSet{
				altCol("supplierName", "Supplier Name", "name"),
				col("contactPerson", "Contact Person"),
				col("email", "Email"),
				altCol("phone", "Phone", "contactNumber"),
				col("materialCategory", "Material Category"),
				col("address", "Address"),
				hiddenCol("gstNumber", "GST Number"),
			},
			RequiredFields: []string{"supplierName", "materialCategory"},
			LiveSearch:     true,
		},
		{
			Code:      EntityMaterialInquiries,
			Name:      "Material Inquiry",
			Endpoints: StandardEndpoints(EntityMaterialInquiries, "material-inquiry"),
			DefaultColumns: ColumnSet{
				col("inquiryDate", "Inquiry Date"),
				col("materialCategory", "Material Category"),
				altCol("vendor", "Vendor", "supplierName"),
				col("quantity", "Quantity"),
				col("status", "Status"),
				col("remarks", "Remarks"),
			},
			RequiredFields: []string{"materialCategory", "vendor"},
			Defaults:       map[string]string{"status": "Pending"},
			StatusColumn:   "status",
			StatusRules:    DefaultStatusRules(),
		},
		{
			Code:      EntityCustomerDeliveries,
			Name:      "Customer Delivery Notice",
			Endpoints: StandardEndpoints(EntityCustomerDeliveries, "delivery"),
			DefaultColumns: ColumnSet{
				col("orderNumber", "Order Number"),
				altCol("customerName", "Customer", "customer"),
				col("deliveryDate", "Delivery Date"),
				col("materialCategory", "Material Category"),
				col("quantity", "Quantity"),
				col("status", "Status"),
				hiddenCol("vehicleNumber", "Vehicle Number"),
			},
			RequiredFields: []string{"orderNumber", "customerName"},
			Defaults:       map[string]string{"status": "Pending"},
			StatusColumn:   "status",
			StatusRules:    deliveryRules,
			PageSize:       10,
		},
		{
			Code:      EntityCustomerOrders,
			Name:      "Customer Order",
			Endpoints: StandardEndpoints(EntityCustomerOrders, "order"),
			DefaultColumns: ColumnSet{
				col("orderNumber", "Order Number"),
				altCol("customerName", "Customer", "customer"),
				col("orderDate", "Order Date"),
				col("materialCategory", "Material Category"),
				col("quantity", "Quantity"),
				col("deliveryDate", "Delivery Date"),
				col("status", "Status"),
			},
			RequiredFields: []string{"orderNumber", "customerName", "materialCategory"},
			Defaults:       map[string]string{"status": "Pending"},
			StatusColumn:   "status",
			StatusRules:    DefaultStatusRules(),
			LiveSearch:     true,
		},
		{
			Code:      EntityMaterialReplenishments,
			Name:      "Material Replenishment",
			Endpoints: StandardEndpoints(EntityMaterialReplenishments, "replenishment"),
			DefaultColumns: ColumnSet{
				col("orderNumber", "Order Number"),
				col("materialCategory", "Material Category"),
				altCol("vendor", "Vendor", "supplierName"),
				col("quantity", "Quantity"),
				col("expectedDate", "Expected Date"),
				col("status", "Status"),
			},
			RequiredFields: []string{"orderNumber", "materialCategory", "vendor"},
			Defaults:       map[string]string{"status": "Pending"},
			StatusColumn:   "status",
			StatusRules:    DefaultStatusRules(),
		},
	}
}
