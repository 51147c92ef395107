package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gridbase-engine/internal/domain"

	"github.com/google/uuid"
)

// MemoryEngine backs all repositories with in-process maps when DB is disabled.
// One struct implements every repository interface so unit tests and the
// DB-less dev mode share a single consistent dataset.
type MemoryEngine struct {
	mu           sync.RWMutex
	tenants      map[string]domain.Tenant
	workspaces   map[string]domain.Workspace
	users        map[string]domain.TenantUser
	tables       map[string]domain.Table
	columns      map[string]domain.Column
	rows         map[string]domain.Row
	cells        map[string]domain.Cell
	cellByRowCol map[string]string // rowID+"/"+columnID -> cellID
	tablePerms   map[string]domain.TablePermission
	columnPerms  map[string]domain.ColumnPermission
}

// NewMemoryEngine creates an empty in-memory dataset.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		tenants:      map[string]domain.Tenant{},
		workspaces:   map[string]domain.Workspace{},
		users:        map[string]domain.TenantUser{},
		tables:       map[string]domain.Table{},
		columns:      map[string]domain.Column{},
		rows:         map[string]domain.Row{},
		cells:        map[string]domain.Cell{},
		cellByRowCol: map[string]string{},
		tablePerms:   map[string]domain.TablePermission{},
		columnPerms:  map[string]domain.ColumnPermission{},
	}
}

var (
	_ TablesRepository      = (*MemoryEngine)(nil)
	_ ColumnsRepository     = (*MemoryEngine)(nil)
	_ RowsRepository        = (*MemoryEngine)(nil)
	_ CellsRepository       = (*MemoryEngine)(nil)
	_ PermissionsRepository = (*MemoryEngine)(nil)
	_ TenantsRepository     = (*MemoryEngine)(nil)
)

func tablePermKey(tableID, userID string) string { return tableID + "/" + userID }
func rowColKey(rowID, columnID string) string    { return rowID + "/" + columnID }

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func clampPage(page, size, total int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return start, end
}

// --- Tables ---

func (m *MemoryEngine) CreateTable(_ context.Context, tenantID string, table *domain.Table, users []domain.TenantUser) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.tables {
		if existing.TenantID == tenantID && existing.WorkspaceID == table.WorkspaceID && existing.TableName == table.TableName {
			return "", domain.NewConflictError("table", table.TableName)
		}
	}

	t := *table
	t.TableID = uuid.NewString()
	t.TenantID = tenantID
	t.CreatedAt = time.Now()
	m.tables[t.TableID] = t

	for _, user := range users {
		key := tablePermKey(t.TableID, user.UserID)
		m.tablePerms[key] = domain.TablePermission{
			PermissionID: uuid.NewString(),
			TenantID:     tenantID,
			TableID:      t.TableID,
			UserID:       user.UserID,
			CanRead:      true,
			CanEdit:      true,
			CanDelete:    true,
			CanCreate:    true,
		}
	}

	return t.TableID, nil
}

func (m *MemoryEngine) GetTable(_ context.Context, tenantID, tableID string) (*domain.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[tableID]
	if !ok || t.TenantID != tenantID {
		return nil, domain.NewNotFoundError("table", tableID)
	}
	return &t, nil
}

func (m *MemoryEngine) ListTables(_ context.Context, tenantID string, filter TablesFilter, page, size int) ([]*domain.Table, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := []domain.Table{}
	for _, t := range m.tables {
		if t.TenantID != tenantID {
			continue
		}
		if filter.WorkspaceID != "" && t.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.Search != "" && !containsFold(t.TableName, filter.Search) {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].TableName < all[j].TableName
	})

	total := len(all)
	start, end := clampPage(page, size, total)
	tables := make([]*domain.Table, 0, end-start)
	for i := start; i < end; i++ {
		t := all[i]
		tables = append(tables, &t)
	}
	return tables, total, nil
}

func (m *MemoryEngine) RenameTable(_ context.Context, tenantID, tableID, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[tableID]
	if !ok || t.TenantID != tenantID {
		return domain.NewNotFoundError("table", tableID)
	}
	for id, existing := range m.tables {
		if id != tableID && existing.TenantID == tenantID && existing.WorkspaceID == t.WorkspaceID && existing.TableName == newName {
			return domain.NewConflictError("table", newName)
		}
	}
	t.TableName = newName
	m.tables[tableID] = t
	return nil
}

func (m *MemoryEngine) SetTablePublic(_ context.Context, tenantID, tableID string, isPublic bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[tableID]
	if !ok || t.TenantID != tenantID {
		return domain.NewNotFoundError("table", tableID)
	}
	t.IsPublic = isPublic
	m.tables[tableID] = t
	return nil
}

func (m *MemoryEngine) DeleteTable(_ context.Context, tenantID, tableID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[tableID]
	if !ok || t.TenantID != tenantID {
		return domain.NewNotFoundError("table", tableID)
	}

	for id, cell := range m.cells {
		if cell.TableID == tableID {
			delete(m.cellByRowCol, rowColKey(cell.RowID, cell.ColumnID))
			delete(m.cells, id)
		}
	}
	for id, row := range m.rows {
		if row.TableID == tableID {
			delete(m.rows, id)
		}
	}
	for id, col := range m.columns {
		if col.TableID == tableID {
			delete(m.columnPerms, id)
			delete(m.columns, id)
		}
	}
	for key, perm := range m.tablePerms {
		if perm.TableID == tableID {
			delete(m.tablePerms, key)
		}
	}
	delete(m.tables, tableID)
	return nil
}

func (m *MemoryEngine) CountTables(_ context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, t := range m.tables {
		if t.TenantID == tenantID {
			total++
		}
	}
	return total, nil
}

func (m *MemoryEngine) CountPublicTables(_ context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, t := range m.tables {
		if t.TenantID == tenantID && t.IsPublic {
			total++
		}
	}
	return total, nil
}

// --- Columns ---

func (m *MemoryEngine) CreateColumn(_ context.Context, tenantID string, column *domain.Column) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxPosition := 0
	for _, existing := range m.columns {
		if existing.TableID != column.TableID {
			continue
		}
		if existing.ColumnName == column.ColumnName {
			return "", domain.NewConflictError("column", column.ColumnName)
		}
		if existing.Position > maxPosition {
			maxPosition = existing.Position
		}
	}

	c := *column
	c.ColumnID = uuid.NewString()
	c.TenantID = tenantID
	if c.Position <= 0 {
		c.Position = maxPosition + 1
	}
	c.CreatedAt = time.Now()
	m.columns[c.ColumnID] = c

	m.columnPerms[c.ColumnID] = domain.ColumnPermission{
		PermissionID: uuid.NewString(),
		TenantID:     tenantID,
		TableID:      c.TableID,
		ColumnID:     c.ColumnID,
		CanRead:      true,
		CanEdit:      true,
	}

	return c.ColumnID, nil
}

func (m *MemoryEngine) GetColumn(_ context.Context, tenantID, columnID string) (*domain.Column, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.columns[columnID]
	if !ok || c.TenantID != tenantID {
		return nil, domain.NewNotFoundError("column", columnID)
	}
	return &c, nil
}

func (m *MemoryEngine) ListColumns(_ context.Context, tenantID, tableID string) ([]*domain.Column, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := []domain.Column{}
	for _, c := range m.columns {
		if c.TenantID == tenantID && c.TableID == tableID {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Position != all[j].Position {
			return all[i].Position < all[j].Position
		}
		return all[i].ColumnName < all[j].ColumnName
	})

	columns := make([]*domain.Column, 0, len(all))
	for i := range all {
		c := all[i]
		columns = append(columns, &c)
	}
	return columns, nil
}

func (m *MemoryEngine) UpdateColumn(_ context.Context, tenantID, columnID string, update ColumnUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.columns[columnID]
	if !ok || c.TenantID != tenantID {
		return domain.NewNotFoundError("column", columnID)
	}

	if update.ColumnName != nil {
		for id, existing := range m.columns {
			if id != columnID && existing.TableID == c.TableID && existing.ColumnName == *update.ColumnName {
				return domain.NewConflictError("column", *update.ColumnName)
			}
		}
		c.ColumnName = *update.ColumnName
	}
	if update.ColumnType != nil {
		c.ColumnType = *update.ColumnType
	}
	if update.Required != nil {
		c.Required = *update.Required
	}
	if update.Unique != nil {
		c.Unique = *update.Unique
	}
	if update.Primary != nil {
		c.Primary = *update.Primary
	}
	if update.AutoIncrement != nil {
		c.AutoIncrement = *update.AutoIncrement
	}
	if update.Position != nil {
		c.Position = *update.Position
	}
	if update.ReferenceTableID != nil {
		c.ReferenceTableID = *update.ReferenceTableID
	}
	if update.CustomOptions != nil {
		c.CustomOptions = append([]string{}, update.CustomOptions...)
	}
	if update.SemanticType != nil {
		c.SemanticType = *update.SemanticType
	}

	m.columns[columnID] = c
	return nil
}

func (m *MemoryEngine) ApplyCurrencyType(_ context.Context, tenantID, columnID string, currencyCodes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.columns[columnID]
	if !ok || c.TenantID != tenantID {
		return domain.NewNotFoundError("column", columnID)
	}
	c.ColumnType = string(domain.ColumnTypeCustomArray)
	c.CustomOptions = append([]string{}, currencyCodes...)
	c.SemanticType = "currency"
	m.columns[columnID] = c
	return nil
}

func (m *MemoryEngine) DeleteColumn(_ context.Context, tenantID, columnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.columns[columnID]
	if !ok || c.TenantID != tenantID {
		return domain.NewNotFoundError("column", columnID)
	}

	for id, cell := range m.cells {
		if cell.ColumnID == columnID {
			delete(m.cellByRowCol, rowColKey(cell.RowID, cell.ColumnID))
			delete(m.cells, id)
		}
	}
	delete(m.columnPerms, columnID)
	delete(m.columns, columnID)
	return nil
}

// --- Rows ---

func (m *MemoryEngine) CreateRow(_ context.Context, tenantID, tableID string, cells []*domain.Cell, autoNumberColumns []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rowID := uuid.NewString()
	now := time.Now()
	m.rows[rowID] = domain.Row{RowID: rowID, TenantID: tenantID, TableID: tableID, CreatedAt: now}

	for _, cell := range cells {
		m.putCellLocked(tenantID, tableID, rowID, cell.ColumnID, cell.Value, now)
	}
	for _, columnID := range autoNumberColumns {
		next := m.nextNumberLocked(tenantID, columnID)
		m.putCellLocked(tenantID, tableID, rowID, columnID, domain.NumberValue(next), now)
	}

	return rowID, nil
}

func (m *MemoryEngine) CreateRowsBatch(_ context.Context, tenantID, tableID string, batch []BatchRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for i, row := range batch {
		rowID := row.RowID
		if rowID == "" {
			rowID = uuid.NewString()
		}
		createdAt := now.Add(time.Duration(i) * time.Microsecond)
		m.rows[rowID] = domain.Row{RowID: rowID, TenantID: tenantID, TableID: tableID, CreatedAt: createdAt}
		for _, cell := range row.Cells {
			m.putCellLocked(tenantID, tableID, rowID, cell.ColumnID, cell.Value, createdAt)
		}
	}
	return nil
}

// putCellLocked writes (or overwrites) the cell for (row, column). Caller holds the lock.
func (m *MemoryEngine) putCellLocked(tenantID, tableID, rowID, columnID string, value domain.Value, now time.Time) domain.Cell {
	key := rowColKey(rowID, columnID)
	if cellID, ok := m.cellByRowCol[key]; ok {
		cell := m.cells[cellID]
		cell.Value = value
		cell.UpdatedAt = now
		m.cells[cellID] = cell
		return cell
	}

	cell := domain.Cell{
		CellID:    uuid.NewString(),
		TenantID:  tenantID,
		TableID:   tableID,
		RowID:     rowID,
		ColumnID:  columnID,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.cells[cell.CellID] = cell
	m.cellByRowCol[key] = cell.CellID
	return cell
}

// nextNumberLocked returns max numeric value of the column plus one. Caller holds the lock.
func (m *MemoryEngine) nextNumberLocked(tenantID, columnID string) float64 {
	max := 0.0
	for _, cell := range m.cells {
		if cell.TenantID != tenantID || cell.ColumnID != columnID {
			continue
		}
		if cell.Value.Kind == domain.KindNumber && cell.Value.Num > max {
			max = cell.Value.Num
		}
	}
	return max + 1
}

func (m *MemoryEngine) GetRow(_ context.Context, tenantID, rowID string) (*domain.Row, []*domain.Cell, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[rowID]
	if !ok || row.TenantID != tenantID {
		return nil, nil, domain.NewNotFoundError("row", rowID)
	}
	return &row, m.cellsForRowLocked(rowID), nil
}

func (m *MemoryEngine) cellsForRowLocked(rowID string) []*domain.Cell {
	all := []domain.Cell{}
	for _, cell := range m.cells {
		if cell.RowID == rowID {
			all = append(all, cell)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].CellID < all[j].CellID
	})
	cells := make([]*domain.Cell, 0, len(all))
	for i := range all {
		c := all[i]
		cells = append(cells, &c)
	}
	return cells
}

func (m *MemoryEngine) ListRows(_ context.Context, tenantID, tableID string, page, size int) ([]*domain.Row, map[string][]*domain.Cell, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := []domain.Row{}
	for _, row := range m.rows {
		if row.TenantID == tenantID && row.TableID == tableID {
			all = append(all, row)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].RowID < all[j].RowID
	})

	total := len(all)
	start, end := clampPage(page, size, total)
	rows := make([]*domain.Row, 0, end-start)
	cells := map[string][]*domain.Cell{}
	for i := start; i < end; i++ {
		row := all[i]
		rows = append(rows, &row)
		cells[row.RowID] = m.cellsForRowLocked(row.RowID)
	}
	return rows, cells, total, nil
}

func (m *MemoryEngine) DeleteRow(_ context.Context, tenantID, rowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[rowID]
	if !ok || row.TenantID != tenantID {
		return domain.NewNotFoundError("row", rowID)
	}

	for id, cell := range m.cells {
		if cell.RowID == rowID {
			delete(m.cellByRowCol, rowColKey(cell.RowID, cell.ColumnID))
			delete(m.cells, id)
		}
	}
	delete(m.rows, rowID)
	return nil
}

func (m *MemoryEngine) CountRows(_ context.Context, tenantID, tableID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, row := range m.rows {
		if row.TenantID == tenantID && row.TableID == tableID {
			total++
		}
	}
	return total, nil
}

// --- Cells ---

func (m *MemoryEngine) GetCell(_ context.Context, tenantID, cellID string) (*domain.Cell, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cell, ok := m.cells[cellID]
	if !ok || cell.TenantID != tenantID {
		return nil, domain.NewNotFoundError("cell", cellID)
	}
	return &cell, nil
}

func (m *MemoryEngine) UpdateCellValue(_ context.Context, tenantID, cellID string, value domain.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cell, ok := m.cells[cellID]
	if !ok || cell.TenantID != tenantID {
		return domain.NewNotFoundError("cell", cellID)
	}
	cell.Value = value
	cell.UpdatedAt = time.Now()
	m.cells[cellID] = cell
	return nil
}

func (m *MemoryEngine) UpsertCell(_ context.Context, tenantID, tableID, rowID, columnID string, value domain.Value) (*domain.Cell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cell := m.putCellLocked(tenantID, tableID, rowID, columnID, value, time.Now())
	return &cell, nil
}

func (m *MemoryEngine) DeleteCell(_ context.Context, tenantID, cellID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cell, ok := m.cells[cellID]
	if !ok || cell.TenantID != tenantID {
		return domain.NewNotFoundError("cell", cellID)
	}
	delete(m.cellByRowCol, rowColKey(cell.RowID, cell.ColumnID))
	delete(m.cells, cellID)
	return nil
}

func (m *MemoryEngine) CountCellsWithValue(_ context.Context, tenantID, columnID, canonical, excludeRowID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, cell := range m.cells {
		if cell.TenantID != tenantID || cell.ColumnID != columnID {
			continue
		}
		if excludeRowID != "" && cell.RowID == excludeRowID {
			continue
		}
		if cell.Value.Canonical() == canonical {
			total++
		}
	}
	return total, nil
}

func (m *MemoryEngine) ListExistingValues(_ context.Context, tenantID, columnID string, candidates []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := map[string]bool{}
	for _, c := range candidates {
		wanted[c] = true
	}

	existing := map[string]bool{}
	for _, cell := range m.cells {
		if cell.TenantID != tenantID || cell.ColumnID != columnID {
			continue
		}
		canonical := cell.Value.Canonical()
		if wanted[canonical] {
			existing[canonical] = true
		}
	}
	return existing, nil
}

// --- Permissions ---

func (m *MemoryEngine) GetTablePermission(_ context.Context, tenantID, tableID, userID string) (*domain.TablePermission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.tablePerms[tablePermKey(tableID, userID)]
	if !ok || p.TenantID != tenantID {
		return nil, domain.NewNotFoundError("table permission", tableID)
	}
	return &p, nil
}

func (m *MemoryEngine) ListTablePermissions(_ context.Context, tenantID, tableID string) ([]*domain.TablePermission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := []domain.TablePermission{}
	for _, p := range m.tablePerms {
		if p.TenantID == tenantID && p.TableID == tableID {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })

	permissions := make([]*domain.TablePermission, 0, len(all))
	for i := range all {
		p := all[i]
		permissions = append(permissions, &p)
	}
	return permissions, nil
}

func (m *MemoryEngine) UpsertTablePermission(_ context.Context, p *domain.TablePermission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *p
	if stored.PermissionID == "" {
		stored.PermissionID = uuid.NewString()
	}
	m.tablePerms[tablePermKey(stored.TableID, stored.UserID)] = stored
	return nil
}

func (m *MemoryEngine) DeleteTablePermission(_ context.Context, tenantID, tableID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tablePermKey(tableID, userID)
	p, ok := m.tablePerms[key]
	if !ok || p.TenantID != tenantID {
		return domain.NewNotFoundError("table permission", tableID)
	}
	delete(m.tablePerms, key)
	return nil
}

func (m *MemoryEngine) GetColumnPermission(_ context.Context, tenantID, columnID string) (*domain.ColumnPermission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.columnPerms[columnID]
	if !ok || p.TenantID != tenantID {
		return nil, domain.NewNotFoundError("column permission", columnID)
	}
	return &p, nil
}

func (m *MemoryEngine) ListColumnPermissions(_ context.Context, tenantID, tableID string) ([]*domain.ColumnPermission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := []domain.ColumnPermission{}
	for _, p := range m.columnPerms {
		if p.TenantID == tenantID && p.TableID == tableID {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ColumnID < all[j].ColumnID })

	permissions := make([]*domain.ColumnPermission, 0, len(all))
	for i := range all {
		p := all[i]
		permissions = append(permissions, &p)
	}
	return permissions, nil
}

func (m *MemoryEngine) UpsertColumnPermission(_ context.Context, p *domain.ColumnPermission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *p
	if stored.PermissionID == "" {
		stored.PermissionID = uuid.NewString()
	}
	m.columnPerms[stored.ColumnID] = stored
	return nil
}

// --- Tenants ---

func (m *MemoryEngine) CreateTenant(_ context.Context, tenant *domain.Tenant) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := *tenant
	t.TenantID = uuid.NewString()
	if t.Status == "" {
		t.Status = "active"
	}
	t.CreatedAt = time.Now()
	m.tenants[t.TenantID] = t

	ws := domain.Workspace{
		WorkspaceID:   uuid.NewString(),
		TenantID:      t.TenantID,
		WorkspaceName: "Default",
		IsDefault:     true,
		CreatedAt:     t.CreatedAt,
	}
	m.workspaces[ws.WorkspaceID] = ws

	return t.TenantID, nil
}

func (m *MemoryEngine) GetTenant(_ context.Context, tenantID string) (*domain.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, domain.NewNotFoundError("tenant", tenantID)
	}
	return &t, nil
}

func (m *MemoryEngine) GetDefaultWorkspace(_ context.Context, tenantID string) (*domain.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ws := range m.workspaces {
		if ws.TenantID == tenantID && ws.IsDefault {
			w := ws
			return &w, nil
		}
	}
	return nil, domain.NewNotFoundError("workspace", tenantID)
}

func (m *MemoryEngine) ListTenantUsers(_ context.Context, tenantID string) ([]domain.TenantUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := []domain.TenantUser{}
	for _, user := range m.users {
		if user.TenantID == tenantID {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Nickname != users[j].Nickname {
			return users[i].Nickname < users[j].Nickname
		}
		return users[i].UserID < users[j].UserID
	})
	return users, nil
}

func (m *MemoryEngine) UpsertTenantUser(_ context.Context, user *domain.TenantUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *user
	if stored.UserID == "" {
		stored.UserID = uuid.NewString()
		user.UserID = stored.UserID
	}
	if stored.Role == "" {
		stored.Role = string(domain.RoleMember)
	}
	if stored.Status == "" {
		stored.Status = "active"
	}
	m.users[stored.UserID] = stored
	return nil
}
