package engine

// snapshotContext implements plan.ReconcileContext over a state-cell
// snapshot already loaded from the store. One is built fresh at the start
// of every reconciliation pass so RenderFunc and gate evaluation never see
// a write made mid-pass, keeping reconciliation a pure function of the
// snapshot it was handed.
type snapshotContext struct {
	executionID string
	snapshot    map[string]string
}

func (c *snapshotContext) StateCell(name string) (string, bool) {
	v, ok := c.snapshot[name]
	return v, ok
}

func (c *snapshotContext) ExecutionID() string {
	return c.executionID
}
