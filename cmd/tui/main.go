package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/grouper/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/grouper/internal/broker"
	"github.com/MrJamesThe3rd/grouper/internal/broker/azure"
	"github.com/MrJamesThe3rd/grouper/internal/category"
	categoryStore "github.com/MrJamesThe3rd/grouper/internal/category/store"
	"github.com/MrJamesThe3rd/grouper/internal/classify"
	classifyStore "github.com/MrJamesThe3rd/grouper/internal/classify/store"
	"github.com/MrJamesThe3rd/grouper/internal/config"
	"github.com/MrJamesThe3rd/grouper/internal/database"
	"github.com/MrJamesThe3rd/grouper/internal/importer"
	"github.com/MrJamesThe3rd/grouper/internal/ingest"
	"github.com/MrJamesThe3rd/grouper/internal/logging"
	"github.com/MrJamesThe3rd/grouper/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/grouper/internal/matching/store"
	"github.com/MrJamesThe3rd/grouper/internal/rates"
	ratesStore "github.com/MrJamesThe3rd/grouper/internal/rates/store"
	"github.com/MrJamesThe3rd/grouper/internal/report"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
	txStore "github.com/MrJamesThe3rd/grouper/internal/transaction/store"
	"github.com/MrJamesThe3rd/grouper/internal/user"
	userStore "github.com/MrJamesThe3rd/grouper/internal/user/store"
)

const logFile = "grouper-tui.log"

var errNoRemoteQueue = errors.New("the memory queue backend only classifies inside the api process")

// offlinePublisher rejects every request so imports still succeed and report
// classification as unavailable.
type offlinePublisher struct{}

func (offlinePublisher) Publish(context.Context, classify.MatchRequest) error {
	return errNoRemoteQueue
}

type model struct {
	userID          uuid.UUID
	txService       *transaction.Service
	categoryService *category.Service
	matchingService *matching.Service
	reportService   *report.Service

	currentView View

	importView  view.ImportModel
	listView    view.ListModel
	summaryView view.SummaryModel
}

type View int

const (
	ViewMenu    View = 0
	ViewImport  View = 1
	ViewList    View = 2
	ViewSummary View = 3
)

func initialModel(cfg *config.Config, logger *slog.Logger) (model, func(), error) {
	userID, err := uuid.Parse(cfg.TUI.UserID)
	if err != nil {
		return model{}, nil, fmt.Errorf("TUI_USER_ID must be a user id: %w", err)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return model{}, nil, fmt.Errorf("connecting to database: %w", err)
	}

	publisher, closeQueue, err := openPublisher(cfg, logger)
	if err != nil {
		db.Close()
		return model{}, nil, err
	}

	var (
		categorySvc = category.NewService(categoryStore.New(db))
		userSvc     = user.NewService(userStore.New(db), categorySvc)
		txSvc       = transaction.NewService(txStore.New(db))
		matchSvc    = matching.NewService(matchingStore.New(db))
		ratesSvc    = rates.NewService(ratesStore.New(db), cfg.Rates.TTL)
		impSvc      = importer.NewService()
		reportSvc   = report.NewService(txSvc, categorySvc, userSvc, ratesSvc)
	)

	if _, err := userSvc.Get(context.Background(), userID); err != nil {
		closeQueue()
		db.Close()

		return model{}, nil, fmt.Errorf("loading user %s: %w", userID, err)
	}

	applier := classify.NewBatchApplier(classifyStore.New(db), matchSvc, ratesSvc,
		classify.WithBatchSize(cfg.Matching.ApplyBatchSize),
		classify.WithApplierLogger(logger),
	)

	dispatcher := classify.NewDispatcher(publisher, matchSvc, applier,
		classify.WithTracker(classifyStore.NewTracker(db)),
		classify.WithDispatcherLogger(logger),
	)

	ingestSvc := ingest.NewService(txSvc, categorySvc, dispatcher, logger)

	cleanup := func() {
		closeQueue()
		db.Close()
	}

	return model{
		userID:          userID,
		txService:       txSvc,
		categoryService: categorySvc,
		matchingService: matchSvc,
		reportService:   reportSvc,
		currentView:     ViewMenu,
		importView:      view.NewImportModel(userID, ingestSvc, impSvc),
		listView:        view.NewListModel(userID, txSvc, categorySvc, matchSvc),
		summaryView:     view.NewSummaryModel(userID, reportSvc),
	}, cleanup, nil
}

func openPublisher(cfg *config.Config, logger *slog.Logger) (classify.Publisher, func(), error) {
	if cfg.Queue.Backend == "memory" {
		logger.Warn("queue backend is memory, imports will not be classified")
		return offlinePublisher{}, func() {}, nil
	}

	service, err := azure.NewServiceClient(cfg.Queue.ServiceURL)
	if err != nil {
		return nil, nil, fmt.Errorf("creating queue client: %w", err)
	}

	queue := azure.New(service, cfg.Queue.RequestQueue, broker.Options{
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
	}, logger)

	return classify.NewQueuePublisher(queue), func() { _ = queue.Close() }, nil
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewImport
				return m, m.importView.Init()
			case "2":
				m.currentView = ViewList
				m.listView = view.NewListModel(m.userID, m.txService, m.categoryService, m.matchingService)

				return m, m.listView.Init()
			case "3":
				m.currentView = ViewSummary
				m.summaryView = view.NewSummaryModel(m.userID, m.reportService)

				return m, m.summaryView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	case ViewList:
		var newModel tea.Model
		newModel, cmd = m.listView.Update(msg)
		m.listView = newModel.(view.ListModel)
	case ViewSummary:
		var newModel tea.Model
		newModel, cmd = m.summaryView.Update(msg)
		m.summaryView = newModel.(view.SummaryModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"Grouper\n\n" +
				"1. Import Statement\n" +
				"2. Transactions\n" +
				"3. Category Summary\n\n" +
				"q. Quit",
		)
	case ViewImport:
		return m.importView.View()
	case ViewList:
		return m.listView.View()
	case ViewSummary:
		return m.summaryView.View()
	}

	return "Unknown View"
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file.
	f, err := tea.LogToFile(logFile, "")
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	logCfg := logging.FromStrings(cfg.Log.Level, cfg.Log.Format)
	logCfg.Output = f
	logger := logging.Setup(logCfg)

	m, cleanup, err := initialModel(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		f.Close()
		os.Exit(1)
	}
	defer cleanup()

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		logger.Error("failed to run TUI", "error", err)
	}
}
