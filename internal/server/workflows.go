package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/flowpilot/internal/planner"
	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

// Response headers describing how a workflow was produced or run.
const (
	HeaderWorkflowSource     = "X-Workflow-Source"
	HeaderWorkflowDiagnostic = "X-Workflow-Diagnostic"
	HeaderWorkflowHalted     = "X-Workflow-Halted"
)

// Planner turns a goal into a workflow object.
type Planner interface {
	Generate(ctx context.Context, goal string) (planner.Generation, error)
}

// Runner executes a plan.
type Runner interface {
	Execute(ctx context.Context, plan workflow.Plan) workflow.Result
}

// WorkflowHandler exposes plan generation and execution.
type WorkflowHandler struct {
	Planner Planner
	Runner  Runner
}

func NewWorkflowHandler(p Planner, r Runner) *WorkflowHandler {
	return &WorkflowHandler{Planner: p, Runner: r}
}

func (h *WorkflowHandler) Register(g *echo.Group) {
	g.POST("/generate", h.generate)
	g.POST("/execute", h.execute)
	g.POST("/run", h.run)
}

type goalRequest struct {
	Goal string `json:"goal"`
}

type executeRequest struct {
	Workflow map[string]interface{} `json:"workflow"`
}

type generateResponse struct {
	Workflow map[string]interface{} `json:"workflow"`
}

type runResponse struct {
	Result workflow.Result `json:"result"`
}

// Generate
//
//	@Summary		Generate a workflow
//	@Description	Asks the LLM to turn a goal into steps. Falls back to a one-step summarize plan when the LLM cannot be used.
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		goalRequest	true	"Goal"
//	@Success		200		{object}	generateResponse
//	@Failure		400		{object}	HTTPError
//	@Router			/generate [post]
func (h *WorkflowHandler) generate(c echo.Context) error {
	var req goalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doc, err := h.plan(c, req.Goal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, generateResponse{Workflow: doc})
}

// Execute
//
//	@Summary		Execute a workflow
//	@Description	Runs the steps in order and returns the execution result. A halted run still reports status "completed".
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		executeRequest	true	"Workflow"
//	@Success		200		{object}	workflow.Result
//	@Failure		400		{object}	HTTPError
//	@Router			/execute [post]
func (h *WorkflowHandler) execute(c echo.Context) error {
	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.runWorkflow(c, req.Workflow)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Run
//
//	@Summary		Generate and execute a workflow
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		goalRequest	true	"Goal"
//	@Success		200		{object}	runResponse
//	@Failure		400		{object}	HTTPError
//	@Router			/run [post]
func (h *WorkflowHandler) run(c echo.Context) error {
	var req goalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doc, err := h.plan(c, req.Goal)
	if err != nil {
		return err
	}
	res, err := h.runWorkflow(c, doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, runResponse{Result: res})
}

// plan generates a workflow object for goal. A blank goal yields the error object instead of a plan.
func (h *WorkflowHandler) plan(c echo.Context, goal string) (map[string]interface{}, error) {
	gen, err := h.Planner.Generate(c.Request().Context(), goal)
	if errors.Is(err, planner.ErrEmptyGoal) {
		return map[string]interface{}{"error": planner.EmptyGoalMessage}, nil
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(HeaderWorkflowSource, string(gen.Source))
	if gen.Failure != nil {
		c.Response().Header().Set(HeaderWorkflowDiagnostic, string(gen.Failure.Kind))
	}
	return gen.Workflow, nil
}

func (h *WorkflowHandler) runWorkflow(c echo.Context, doc map[string]interface{}) (workflow.Result, error) {
	plan, err := workflow.PlanFromObject(doc)
	if err != nil {
		return workflow.Result{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res := h.Runner.Execute(c.Request().Context(), plan)
	if res.Halted() {
		c.Response().Header().Set(HeaderWorkflowHalted, "true")
	}
	return res, nil
}
