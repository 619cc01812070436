package api

import (
	"context"
	"net/url"
)

const WarehouseRunning = "RUNNING"

type ODBCParams struct {
	Hostname string `json:"hostname" yaml:"hostname"`
	Path     string `json:"path" yaml:"path"`
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// Warehouse is a SQL warehouse as listed by the workspace.
type Warehouse struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	State      string     `json:"state" yaml:"state"`
	ODBCParams ODBCParams `json:"odbc_params" yaml:"odbc_params"`
}

func (w Warehouse) IsRunning() bool { return w.State == WarehouseRunning }

func (c *Client) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	var resp struct {
		Warehouses []Warehouse `json:"warehouses"`
	}
	if err := c.get(ctx, "/api/2.0/sql/warehouses", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Warehouses, nil
}

func (c *Client) GetWarehouse(ctx context.Context, id string) (Warehouse, error) {
	var w Warehouse
	if err := c.get(ctx, "/api/2.0/sql/warehouses/"+url.PathEscape(id), nil, &w); err != nil {
		return Warehouse{}, err
	}
	return w, nil
}
