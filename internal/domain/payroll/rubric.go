package payroll

// Kind derives the rubric variant from its flags. IPR is reported as
// KindTax; check IsIPR for the distinguished sub-variant.
func (r Rubric) Kind() Kind {
	switch {
	case !r.IsDiscount:
		return KindBenefit
	case r.IsTax || r.IsIPR:
		return KindTax
	case r.IsEmployee:
		return KindEmployeeDeduction
	case r.IsSocialCare:
		return KindSocialCharge
	default:
		return KindEmployerCharge
	}
}

// Taxable reports whether a benefit enters the taxable base. Social-care
// benefits are paid outside it.
func (r Rubric) Taxable() bool {
	return !r.IsDiscount && !r.IsSocialCare
}

// PreTax reports whether an employee deduction is taken off the IPR base.
func (r Rubric) PreTax() bool {
	return r.IsDiscount && r.IsEmployee && r.IsSocialCare && !r.IsIPR
}

func (r Rubric) validate() error {
	switch {
	case r.IsIPR && (!r.IsDiscount || !r.IsEmployee):
		return configErrorf("rubric %s: IPR must be an employee-borne deduction", r.Abbr)
	case r.IsEmployee && !r.IsDiscount:
		return configErrorf("rubric %s: only deductions can be employee-borne", r.Abbr)
	case r.IsDiscount && (r.IsSeniorityBonus || r.IsFamilyAllowances):
		return configErrorf("rubric %s: seniority and family allowances are benefits", r.Abbr)
	case r.IsIndice && r.IsDiscount:
		return configErrorf("rubric %s: indexed rubrics must be benefits", r.Abbr)
	case r.Value.IsNegative():
		return configErrorf("rubric %s: negative value", r.Abbr)
	}
	return nil
}

type ClassifiedRubrics struct {
	Benefits           []Rubric
	Taxes              []Rubric
	SocialCare         []Rubric
	EmployeeDeductions []Rubric
	EmployerCharges    []Rubric
	// Indexed holds benefits paid in index points rather than currency.
	Indexed []Rubric
	IPR     *Rubric
}

// Classify partitions the configured rubrics. Input order is kept inside
// every set and a rubric may belong to several sets.
func Classify(rubrics []Rubric) (ClassifiedRubrics, error) {
	var out ClassifiedRubrics
	seen := make(map[int]bool, len(rubrics))
	for i := range rubrics {
		r := rubrics[i]
		if err := r.validate(); err != nil {
			return ClassifiedRubrics{}, err
		}
		if seen[r.ID] {
			return ClassifiedRubrics{}, configErrorf("rubric id %d is configured twice", r.ID)
		}
		seen[r.ID] = true

		if r.IsIPR {
			if out.IPR != nil {
				return ClassifiedRubrics{}, configErrorf("more than one IPR rubric (%s, %s)", out.IPR.Abbr, r.Abbr)
			}
			ipr := r
			out.IPR = &ipr
		}
		if r.IsTax || r.IsIPR {
			out.Taxes = append(out.Taxes, r)
		}

		if !r.IsDiscount {
			if r.IsIndice {
				out.Indexed = append(out.Indexed, r)
				continue
			}
			out.Benefits = append(out.Benefits, r)
			if r.IsSocialCare {
				out.SocialCare = append(out.SocialCare, r)
			}
			continue
		}
		if r.IsEmployee {
			out.EmployeeDeductions = append(out.EmployeeDeductions, r)
		} else {
			out.EmployerCharges = append(out.EmployerCharges, r)
		}
	}
	return out, nil
}
