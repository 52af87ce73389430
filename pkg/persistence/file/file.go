// Package file provides file-based persistence. Each entity is one JSON file
// under <root>/<kind>s/<id>.json.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root           string
	automations    *automationRepository
	tools          *repository[models.SystemTool]
	agents         *repository[models.Agent]
	conditionTools *repository[models.ConditionTool]
	webhooks       *repository[models.Webhook]
	executions     *executionRepository
}

// NewPersistence creates a Persistence rooted at root. A "file://" prefix is accepted.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root: cleanRoot,
		automations: &automationRepository{
			repository: newRepository(cleanRoot, persistence.KindAutomation, func(a *models.Automation) string { return a.ID }),
		},
		tools:          newRepository(cleanRoot, persistence.KindTool, func(t *models.SystemTool) string { return t.ID }),
		agents:         newRepository(cleanRoot, persistence.KindAgent, func(a *models.Agent) string { return a.ID }),
		conditionTools: newRepository(cleanRoot, persistence.KindConditionTool, func(c *models.ConditionTool) string { return c.ID }),
		webhooks:       newRepository(cleanRoot, persistence.KindWebhook, func(w *models.Webhook) string { return w.ID }),
		executions: &executionRepository{
			repository: newRepository(cleanRoot, persistence.KindExecution, func(e *models.ExecutionContext) string { return e.ID }),
		},
	}
}

func (fp *Persistence) Automations() persistence.AutomationRepository { return fp.automations }

func (fp *Persistence) Tools() persistence.Repository[models.SystemTool] { return fp.tools }

func (fp *Persistence) Agents() persistence.Repository[models.Agent] { return fp.agents }

func (fp *Persistence) ConditionTools() persistence.Repository[models.ConditionTool] {
	return fp.conditionTools
}

func (fp *Persistence) Webhooks() persistence.Repository[models.Webhook] { return fp.webhooks }

func (fp *Persistence) Executions() persistence.ExecutionRepository { return fp.executions }

// Close is a no-op for file persistence.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}
