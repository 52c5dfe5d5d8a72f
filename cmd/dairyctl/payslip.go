package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/logger"
	"dairyfarm/backend/internal/payslip"
)

var payslipCmd = &cobra.Command{
	Use:   "payslip",
	Short: "Render the payslip PDF for one employee in a payroll payment",
	Example: `  dairyctl payslip --payment 12 --employee 4
  dairyctl payslip --payment 12 --employee 4 --out ravi-march.pdf`,
	RunE: runPayslip,
}

func init() {
	rootCmd.AddCommand(payslipCmd)

	payslipCmd.Flags().Int64("payment", 0, "payroll payment id")
	payslipCmd.Flags().Int64("employee", 0, "employee id within the payment")
	payslipCmd.Flags().String("out", "", "output file, - for stdout (default: generated filename)")
	_ = payslipCmd.MarkFlagRequired("payment")
	_ = payslipCmd.MarkFlagRequired("employee")
}

func runPayslip(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("payslip")

	paymentID, _ := cmd.Flags().GetInt64("payment")
	employeeID, _ := cmd.Flags().GetInt64("employee")
	out, _ := cmd.Flags().GetString("out")

	ctx, cancel := context.WithTimeout(cmd.Context(), 45*time.Second)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := e.store.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	item, ok := p.Item(employeeID)
	if !ok {
		return fmt.Errorf("%w: employee %d is not in payment %s", apperr.ErrNotFound, employeeID, p.PaymentID)
	}

	employee := payslip.Employee{ID: payslip.ID(strconv.FormatInt(employeeID, 10)), Name: item.EmployeeName}
	if emp, err := e.store.GetEmployee(ctx, employeeID); err == nil {
		employee = payslip.EmployeeFromPayroll(emp)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	artifact, err := payslip.Render(payslip.FromPayroll(p, item), employee, payslip.Options{
		CompanyName:    e.cfg.Farm.CompanyName,
		CompanyAddress: e.cfg.Farm.CompanyAddress,
		Now:            func() time.Time { return time.Now().In(e.loc) },
	})
	if err != nil {
		return err
	}
	if out == "" {
		out = artifact.Filename
	}
	if err := writeOutput(out, artifact.Content); err != nil {
		return err
	}

	ev := log.Info().Str("payment", p.PaymentID).Int64("employee_id", employeeID).Str("out", out)
	if artifact.Breakdown.Estimated() {
		ev = ev.Strs("estimated", artifact.Breakdown.EstimatedFields)
	}
	ev.Msg("payslip written")
	return nil
}
