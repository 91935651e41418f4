package tool

func str(name, desc string) Param     { return Param{Name: name, Kind: KindString, Description: desc} }
func integer(name, desc string) Param { return Param{Name: name, Kind: KindInteger, Description: desc} }
func boolean(name, desc string) Param { return Param{Name: name, Kind: KindBoolean, Description: desc} }
func list(name, desc string) Param    { return Param{Name: name, Kind: KindArray, Description: desc} }

func required(p Param) Param {
	p.Required = true
	return p
}

var (
	dentistFilter = integer(ScopeArg, "Restrict results to one dentist by id")
	dateFrom      = str("startDate", "Start date, YYYY-MM-DD")
	dateTo        = str("endDate", "End date, YYYY-MM-DD")
	limitParam    = integer("limit", "Maximum number of rows to return")
)

// DentalCatalog 返回诊所助手的全部工具声明
func DentalCatalog() []Declaration {
	return []Declaration{
		// 访客可用
		{
			Name:        "list_treatments",
			Description: "List the treatments and services the clinic offers, with typical duration and price range.",
			Params:      []Param{str("category", "Optional treatment category such as cleaning or orthodontics")},
			Auth:        AuthGuest,
			ResultKey:   "treatments",
			NotFound:    "The clinic has not published any treatments yet.",
		},
		{
			Name:        "list_specializations",
			Description: "List the dental specializations available at the clinic.",
			Auth:        AuthGuest,
			ResultKey:   "specializations",
			NotFound:    "No specializations are listed.",
		},
		{
			Name:        "list_dentists",
			Description: "List the clinic's dentists with their public profile and specialization.",
			Params:      []Param{str("specialization", "Optional specialization to filter by")},
			Auth:        AuthGuest,
			ResultKey:   "dentists",
			NotFound:    "No dentists match that specialization.",
		},
		{
			Name:        "get_clinic_hours",
			Description: "Get the clinic's opening hours for each day of the week.",
			Params:      []Param{str("day", "Optional day of the week")},
			Auth:        AuthGuest,
			ResultKey:   "hours",
			NotFound:    "Opening hours are not configured.",
		},

		// 需要登录
		{
			Name:        "get_dentist_details",
			Description: "Get details about one dentist by name or id, including working days.",
			Params:      []Param{integer("dentistId", "Dentist id"), str("dentistName", "Dentist name, partial match allowed")},
			Auth:        AuthAuthenticated,
			ResultKey:   "dentist",
			NotFound:    "No dentist matches that name.",
		},
		{
			Name:        "get_treatment_details",
			Description: "Get the full description, duration and price of a single treatment.",
			Params:      []Param{required(str("treatmentName", "Treatment name"))},
			Auth:        AuthAuthenticated,
			ResultKey:   "treatment",
			NotFound:    "No treatment matches that name.",
		},
		{
			Name:        "check_availability",
			Description: "Check free appointment slots for a dentist on a given date.",
			Params:      []Param{required(str("date", "Date, YYYY-MM-DD")), integer("dentistId", "Dentist id"), str("dentistName", "Dentist name")},
			Auth:        AuthAuthenticated,
			ResultKey:   "slots",
			NotFound:    "There are no free slots on that date.",
		},

		// 按角色收窄
		{
			Name:        "search_patients",
			Description: "Search patients by name, phone or email.",
			Params:      []Param{required(str("query", "Search text")), dentistFilter, limitParam},
			Auth:        AuthRoleScoped,
			ResultKey:   "patients",
			NotFound:    "No patients match that search.",
		},
		{
			Name:        "get_patient_details",
			Description: "Get the profile of one patient including contact details and last visit.",
			Params:      []Param{integer("patientId", "Patient id"), str("patientName", "Patient name"), dentistFilter},
			Auth:        AuthRoleScoped,
			ResultKey:   "patient",
			NotFound:    "No patient with that name was found.",
		},
		{
			Name:        "get_patient_treatment_history",
			Description: "Get the treatments a patient has received, newest first.",
			Params:      []Param{integer("patientId", "Patient id"), str("patientName", "Patient name"), dentistFilter, limitParam},
			Auth:        AuthRoleScoped,
			ResultKey:   "treatments",
			NotFound:    "No treatment history was found for that patient.",
		},
		{
			Name:        "get_upcoming_birthdays",
			Description: "List patients with birthdays in the next number of days.",
			Params:      []Param{integer("days", "Look-ahead window in days, default 7"), dentistFilter},
			Auth:        AuthRoleScoped,
			ResultKey:   "patients",
			NotFound:    "No patient birthdays are coming up.",
		},
		{
			Name:        "get_all_patients",
			Description: "List all patients, optionally filtered by status.",
			Params:      []Param{str("status", "Optional patient status such as active or inactive"), dentistFilter, limitParam},
			Auth:        AuthRoleScoped,
			Sensitive:   true,
			ResultKey:   "patients",
			NotFound:    "There are no patients on record.",
		},
		{
			Name:        "search_appointments",
			Description: "Search appointments by patient, status or date range.",
			Params:      []Param{str("patientName", "Patient name"), str("status", "Appointment status"), dateFrom, dateTo, dentistFilter, limitParam},
			Auth:        AuthRoleScoped,
			ResultKey:   "appointments",
			NotFound:    "No appointments match those filters.",
		},
		{
			Name:        "get_appointments_by_date",
			Description: "List all appointments on a specific date.",
			Params:      []Param{required(str("date", "Date, YYYY-MM-DD")), dentistFilter},
			Auth:        AuthRoleScoped,
			ResultKey:   "appointments",
			NotFound:    "There are no appointments on that date.",
		},
		{
			Name:        "get_upcoming_appointments",
			Description: "List upcoming appointments for the next number of days.",
			Params:      []Param{integer("days", "Look-ahead window in days, default 7"), dentistFilter, limitParam},
			Auth:        AuthRoleScoped,
			ResultKey:   "appointments",
			NotFound:    "There are no upcoming appointments.",
		},
		{
			Name:        "get_appointment_stats",
			Description: "Get appointment counts grouped by status for a period.",
			Params:      []Param{dateFrom, dateTo, dentistFilter},
			Auth:        AuthRoleScoped,
			ResultKey:   "stats",
			NotFound:    "There are no appointments in that period.",
		},

		// 牙医本人
		{
			Name:             "get_my_schedule",
			Description:      "Get the calling dentist's own schedule for a date or the coming days.",
			Params:           []Param{str("date", "Date, YYYY-MM-DD"), integer("days", "Number of days to include")},
			Auth:             AuthDentistPersonal,
			ResultKey:        "appointments",
			NotFound:         "Your schedule is empty for that period.",
			AdminAlternative: "get_dentist_schedule",
		},
		{
			Name:             "get_my_patients",
			Description:      "List the calling dentist's own patients.",
			Params:           []Param{limitParam},
			Auth:             AuthDentistPersonal,
			Sensitive:        true,
			ResultKey:        "patients",
			NotFound:         "You have no patients on record.",
			AdminAlternative: "get_all_patients",
		},
		{
			Name:             "get_my_appointment_stats",
			Description:      "Get the calling dentist's own appointment statistics for a period.",
			Params:           []Param{dateFrom, dateTo},
			Auth:             AuthDentistPersonal,
			ResultKey:        "stats",
			NotFound:         "You have no appointments in that period.",
			AdminAlternative: "get_appointment_stats",
		},
		{
			Name:             "get_my_next_appointment",
			Description:      "Get the calling dentist's next upcoming appointment.",
			Auth:             AuthDentistPersonal,
			ResultKey:        "appointment",
			NotFound:         "You have no upcoming appointments.",
			AdminAlternative: "get_upcoming_appointments",
		},

		// 仅管理员
		{
			Name:        "get_revenue_report",
			Description: "Get total revenue for a period, grouped by day, week or month.",
			Params:      []Param{dateFrom, dateTo, str("groupBy", "day, week or month")},
			Auth:        AuthAdmin,
			Sensitive:   true,
			ResultKey:   "revenue",
			NotFound:    "No revenue was recorded in that period.",
		},
		{
			Name:        "get_revenue_by_dentist",
			Description: "Get revenue per dentist for a period.",
			Params:      []Param{dateFrom, dateTo, list("dentistNames", "Optional dentist names to include")},
			Auth:        AuthAdmin,
			Sensitive:   true,
			ResultKey:   "revenue",
			NotFound:    "No revenue was recorded in that period.",
		},
		{
			Name:        "get_revenue_by_treatment",
			Description: "Get revenue per treatment for a period.",
			Params:      []Param{dateFrom, dateTo, limitParam},
			Auth:        AuthAdmin,
			Sensitive:   true,
			ResultKey:   "revenue",
			NotFound:    "No revenue was recorded in that period.",
		},
		{
			Name:        "get_dentist_schedule",
			Description: "Get any dentist's schedule for a date or the coming days.",
			Params:      []Param{integer("dentistId", "Dentist id"), str("dentistName", "Dentist name"), str("date", "Date, YYYY-MM-DD"), integer("days", "Number of days to include")},
			Auth:        AuthAdmin,
			ResultKey:   "appointments",
			NotFound:    "That dentist's schedule is empty for the period.",
		},
		{
			Name:        "compare_dentist_performance",
			Description: "Compare dentists by completed appointments, revenue and cancellations for a period.",
			Params:      []Param{dateFrom, dateTo, list("dentistNames", "Optional dentist names to compare")},
			Auth:        AuthAdmin,
			Sensitive:   true,
			ResultKey:   "dentists",
			NotFound:    "There is no activity to compare in that period.",
		},
		{
			Name:        "get_dentist_workload",
			Description: "Get booked hours and appointment counts per dentist for a period.",
			Params:      []Param{dateFrom, dateTo},
			Auth:        AuthAdmin,
			Sensitive:   true,
			ResultKey:   "workload",
			NotFound:    "There is no workload recorded in that period.",
		},
		{
			Name:        "search_audit_logs",
			Description: "Search the audit log by user name, action or date range.",
			Params:      []Param{str("userName", "User name"), str("action", "Action name"), dateFrom, dateTo, limitParam},
			Auth:        AuthAdmin,
			Sensitive:   true,
			ResultKey:   "entries",
			NotFound:    "No audit entries match those filters.",
		},
		{
			Name:        "get_cancellation_stats",
			Description: "Get cancellation and no-show rates for a period.",
			Params:      []Param{dateFrom, dateTo, boolean("includeNoShows", "Include no-shows in the totals")},
			Auth:        AuthAdmin,
			ResultKey:   "stats",
			NotFound:    "There were no cancellations in that period.",
		},
		{
			Name:        "get_new_patients_stats",
			Description: "Get the number of newly registered patients per month.",
			Params:      []Param{dateFrom, dateTo},
			Auth:        AuthAdmin,
			ResultKey:   "stats",
			NotFound:    "No new patients registered in that period.",
		},
		{
			Name:        "get_clinic_summary",
			Description: "Get a one-page overview of today's clinic activity: appointments, arrivals and open slots.",
			Auth:        AuthAdmin,
			ResultKey:   "summary",
			NotFound:    "There is no activity recorded today.",
		},
	}
}

// NewDentalCatalog 构造诊所助手工具目录
func NewDentalCatalog() *Catalog {
	c, err := NewCatalog(DentalCatalog()...)
	if err != nil {
		panic(err)
	}
	return c
}
