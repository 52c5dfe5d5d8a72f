package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dairyfarm/backend/internal/config"
	"dairyfarm/backend/internal/payroll"
	"dairyfarm/backend/internal/store"
)

type Server struct {
	store          *store.Store
	payroll        *payroll.Service
	settings       config.FarmSettings
	jwtSecret      []byte
	location       *time.Location
	allowedOrigins map[string]struct{}
	allowAnyOrigin bool
	loginGuard     *loginGuard
	sequencer      *fetchSequencer
	mailer         Mailer
	log            zerolog.Logger
	clock          func() time.Time
}

type Options struct {
	Store          *store.Store
	Payroll        *payroll.Service
	Settings       config.FarmSettings
	JWTSecret      string
	Location       *time.Location
	AllowedOrigins []string
	// Mailer sends invoice reminders. Nil disables the reminder endpoint.
	Mailer         Mailer
	Logger         zerolog.Logger
}

type authContextKey string

const userIDContextKey authContextKey = "user_id"
const userRoleContextKey authContextKey = "user_role"

func NewServer(opts Options) *Server {
	s := &Server{
		store:          opts.Store,
		payroll:        opts.Payroll,
		settings:       opts.Settings,
		jwtSecret:      []byte(opts.JWTSecret),
		location:       opts.Location,
		allowedOrigins: make(map[string]struct{}),
		loginGuard:     newLoginGuard(10, 15*time.Minute),
		sequencer:      newFetchSequencer(),
		mailer:         opts.Mailer,
		log:            opts.Logger,
		clock:          time.Now,
	}
	for _, origin := range opts.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			s.allowAnyOrigin = true
			continue
		}
		if origin != "" {
			s.allowedOrigins[origin] = struct{}{}
		}
	}
	return s
}

func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("GET /api/auth/me", s.authRequired(http.HandlerFunc(s.handleMe)))

	finance := []string{store.RoleOwner, store.RoleManager, store.RoleAccountant}
	herdWriters := []string{store.RoleOwner, store.RoleManager, store.RoleWorker}

	// dashboard
	mux.Handle("GET /api/finance/summary", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleFinanceSummary), finance...)))
	mux.Handle("GET /api/finance/expenses/trend", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleExpenseTrend), finance...)))
	mux.Handle("GET /api/finance/expenses/categories", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleExpenseCategories), finance...)))
	mux.Handle("GET /api/finance/revenue/trend", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleRevenueTrend), finance...)))
	mux.Handle("GET /api/finance/revenue/categories", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleRevenueCategories), finance...)))
	mux.Handle("GET /api/finance/invoices/summary", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleInvoiceSummary), finance...)))
	mux.Handle("GET /api/finance/invoices/aging", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleInvoiceAging), finance...)))
	mux.Handle("GET /api/finance/customers/ranking", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCustomerRanking), finance...)))

	// bookkeeping records
	mux.Handle("GET /api/expenses", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleExpenses), finance...)))
	mux.Handle("POST /api/expenses", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCreateExpense), finance...)))
	mux.Handle("GET /api/expenses/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleGetExpense), finance...)))
	mux.Handle("PUT /api/expenses/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleUpdateExpense), finance...)))
	mux.Handle("PATCH /api/expenses/{id}/status", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleExpenseStatus), finance...)))
	mux.Handle("DELETE /api/expenses/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleDeleteExpense), store.RoleOwner, store.RoleManager)))
	mux.Handle("GET /api/revenues", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleRevenues), finance...)))
	mux.Handle("POST /api/revenues", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCreateRevenue), finance...)))
	mux.Handle("GET /api/revenues/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleGetRevenue), finance...)))
	mux.Handle("PUT /api/revenues/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleUpdateRevenue), finance...)))
	mux.Handle("PATCH /api/revenues/{id}/status", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleRevenueStatus), finance...)))
	mux.Handle("DELETE /api/revenues/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleDeleteRevenue), store.RoleOwner, store.RoleManager)))
	mux.Handle("GET /api/invoices", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleInvoices), finance...)))
	mux.Handle("POST /api/invoices", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCreateInvoice), finance...)))
	mux.Handle("GET /api/invoices/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleGetInvoice), finance...)))
	mux.Handle("PUT /api/invoices/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleUpdateInvoice), finance...)))
	mux.Handle("PATCH /api/invoices/{id}/status", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleInvoiceStatus), finance...)))
	mux.Handle("POST /api/invoices/{id}/remind", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleInvoiceReminder), finance...)))
	mux.Handle("DELETE /api/invoices/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleDeleteInvoice), store.RoleOwner, store.RoleManager)))
	mux.Handle("GET /api/customers", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCustomers), finance...)))
	mux.Handle("POST /api/customers", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCreateCustomer), finance...)))
	mux.Handle("GET /api/customers/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleGetCustomer), finance...)))
	mux.Handle("PUT /api/customers/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleUpdateCustomer), finance...)))
	mux.Handle("DELETE /api/customers/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleDeleteCustomer), store.RoleOwner, store.RoleManager)))

	// payroll
	mux.Handle("GET /api/payroll/employees", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleEmployees), finance...)))
	mux.Handle("POST /api/payroll/employees", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCreateEmployee), store.RoleOwner, store.RoleManager)))
	mux.Handle("PUT /api/payroll/employees/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleUpdateEmployee), store.RoleOwner, store.RoleManager)))
	mux.Handle("POST /api/payroll/draft", s.authRequired(s.roleRequired(http.HandlerFunc(s.handlePayrollDraft), finance...)))
	mux.Handle("POST /api/payroll/draft/recalculate", s.authRequired(s.roleRequired(http.HandlerFunc(s.handlePayrollRecalculate), finance...)))
	mux.Handle("POST /api/payroll/payments", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleSubmitPayroll), store.RoleOwner, store.RoleManager)))
	mux.Handle("GET /api/payroll/payments", s.authRequired(s.roleRequired(http.HandlerFunc(s.handlePayrollPayments), finance...)))
	mux.Handle("GET /api/payroll/payments/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleGetPayrollPayment), finance...)))
	mux.Handle("POST /api/payroll/payments/{id}/void", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleVoidPayroll), store.RoleOwner)))
	mux.Handle("GET /api/payroll/payments/{id}/payslips/{employeeId}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handlePayslip), finance...)))

	// herd
	mux.Handle("GET /api/cows", s.authRequired(http.HandlerFunc(s.handleCows)))
	mux.Handle("POST /api/cows", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCreateCow), store.RoleOwner, store.RoleManager)))
	mux.Handle("GET /api/cows/{id}", s.authRequired(http.HandlerFunc(s.handleGetCow)))
	mux.Handle("PUT /api/cows/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleUpdateCow), store.RoleOwner, store.RoleManager)))
	mux.Handle("DELETE /api/cows/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleDeleteCow), store.RoleOwner, store.RoleManager)))
	mux.Handle("GET /api/milk", s.authRequired(http.HandlerFunc(s.handleMilkRecords)))
	mux.Handle("POST /api/milk", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCreateMilkRecord), herdWriters...)))
	mux.Handle("GET /api/milk/summary", s.authRequired(http.HandlerFunc(s.handleMilkSummary)))
	mux.Handle("GET /api/milk/trend", s.authRequired(http.HandlerFunc(s.handleMilkTrend)))
	mux.Handle("GET /api/herd/health", s.authRequired(http.HandlerFunc(s.handleHerdHealth)))
	mux.Handle("GET /api/inspections", s.authRequired(http.HandlerFunc(s.handleInspections)))
	mux.Handle("POST /api/inspections", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCreateInspection), herdWriters...)))
	mux.Handle("GET /api/inspections/pending", s.authRequired(http.HandlerFunc(s.handlePendingInspections)))

	// exports and saved reports
	mux.Handle("GET /api/exports/{file}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleExport), finance...)))
	mux.Handle("GET /api/reports", s.authRequired(http.HandlerFunc(s.handleReports)))
	mux.Handle("POST /api/reports/generate", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleGenerateReport), store.RoleOwner, store.RoleManager, store.RoleAccountant)))
	mux.Handle("GET /api/reports/{id}/download", s.authRequired(http.HandlerFunc(s.handleDownloadReport)))

	return s.withRequestLog(s.withCORS(mux))
}
