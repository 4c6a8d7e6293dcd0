package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/attendly/callline/pkg/provider/llm"
)

// classInfo holds the per-class reference card read by the class info tool.
type classInfo struct {
	Name         string
	Description  string
	Requirements string
	Materials    string
	Location     string
	Preparation  string
	Schedule     string
	Instructor   string
	Syllabus     string
	Homework     string
}

// classCatalog is the built-in class reference data. Classes not listed here
// fall back to generic placeholder answers.
var classCatalog = map[string]classInfo{
	"Programming Proficiency": {
		Name:         "Programming Proficiency",
		Description:  "Learn the basics of programming and build your first web app",
		Requirements: "Basic computer literacy, willingness to learn coding fundamentals",
		Materials:    "Laptop with internet connection, code editor (VS Code recommended), notebook for taking notes",
		Location:     "Online via Zoom - link will be sent 30 minutes before class",
		Preparation:  "Please ensure your laptop is charged and you have a stable internet connection. Review any pre-class materials sent via email",
		Schedule:     "Mondays and Wednesdays, 10:00 AM - 12:00 PM",
		Instructor:   "Sarah Johnson - Senior Software Developer with 8 years experience",
		Syllabus:     "Week 1-2: HTML/CSS basics, Week 3-4: JavaScript fundamentals, Week 5-6: Building your first web app",
		Homework:     "Weekly coding exercises and one final project to build a personal website",
	},
	"Data Science Fundamentals": {
		Name:         "Data Science Fundamentals",
		Description:  "Learn the basics of data science and build your first data analysis project",
		Requirements: "Basic math skills, curiosity about data analysis",
		Materials:    "Computer with Python installed, Jupyter notebooks, calculator",
		Location:     "Hybrid - Room 205 or online option available",
		Preparation:  "Install Python and Jupyter notebooks using our setup guide",
		Schedule:     "Tuesdays and Thursdays, 2:00 PM - 4:00 PM",
		Instructor:   "Dr. Michael Chen - Data Science PhD with industry experience",
		Syllabus:     "Statistics basics, Python for data analysis, visualization, machine learning intro",
		Homework:     "Data analysis projects using real-world datasets",
	},
	"Digital Marketing Essentials": {
		Name:         "Digital Marketing Essentials",
		Description:  "Learn the basics of digital marketing and build your first social media campaign",
		Requirements: "Interest in marketing, basic computer skills",
		Materials:    "Laptop, access to social media accounts for practice",
		Location:     "Conference Room A, Building 2",
		Preparation:  "Think about brands you follow and what makes their marketing effective",
		Schedule:     "Fridays, 1:00 PM - 5:00 PM",
		Instructor:   "Lisa Rodriguez - Marketing Director with 10+ years experience",
		Syllabus:     "Social media strategy, content creation, analytics, email marketing",
		Homework:     "Create marketing campaigns for fictional products",
	},
	"Fullstack Development Bootcamp": {
		Name:         "Fullstack Development Bootcamp",
		Description:  "Learn to build web applications from scratch",
		Requirements: "Basic computer literacy, willingness to learn coding fundamentals",
		Materials:    "Laptop with internet connection, code editor (VS Code recommended), notebook for taking notes",
		Location:     "Online via Zoom - link will be sent 30 minutes before class",
		Preparation:  "Please ensure your laptop is charged and you have a stable internet connection. Review any pre-class materials sent via email",
		Schedule:     "Mondays and Wednesdays, 10:00 AM - 12:00 PM",
		Instructor:   "Callum Bir - Senior Software Developer with more than 20 years experience of integrating AI into his work",
		Syllabus:     "Week 1-2: HTML/CSS basics, Week 3-4: JavaScript fundamentals, Week 5-6: Building your first web app",
		Homework:     "Weekly coding exercises and one final project to build a personal website",
	},
}

// genericClassInfo is used when the requested class is not in the catalog.
func genericClassInfo(name string) classInfo {
	return classInfo{
		Name:         name,
		Description:  "No information available for this class",
		Requirements: "Will be provided by your instructor",
		Materials:    "Material list will be sent before class starts",
		Location:     "Location details will be confirmed closer to class date",
		Preparation:  "Preparation instructions will be emailed to you",
		Schedule:     "Schedule confirmed in your enrollment confirmation",
		Instructor:   "Instructor information will be provided soon",
		Syllabus:     "Detailed syllabus available on the student portal",
		Homework:     "Assignment details will be covered in the first class",
	}
}

var validInfoTypes = []string{
	"name", "description", "requirements", "materials", "location",
	"preparation", "schedule", "instructor", "syllabus", "homework", "all",
}

// ClassInfoTool answers questions about a class: schedule, location,
// materials, instructor, and so on. Read-only; its primary argument for
// duplicate detection is the requested info type.
type ClassInfoTool struct{}

func (ClassInfoTool) Name() string { return "get_class_info" }

func (ClassInfoTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "get_class_info",
		Description: "Get detailed information about a class, including requirements, materials, location, and preparation",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"infoType": map[string]any{
					"type":        "string",
					"description": "Type of information requested",
					"enum":        validInfoTypes,
				},
				"className": map[string]any{
					"type":        "string",
					"description": "Name of the class to get information about",
				},
				"specificQuestion": map[string]any{
					"type":        "string",
					"description": "Specific question the student asked about the class",
				},
			},
			"required": []string{"infoType"},
		},
	}
}

func (ClassInfoTool) PrimaryArg(args map[string]any) string {
	return stringArg(args, "infoType")
}

func (ClassInfoTool) Validate(args map[string]any, _ *CallContext) error {
	infoType := stringArg(args, "infoType")
	if infoType == "" {
		return errors.New("What would you like to know about your class? I can cover the schedule, location, materials, or preparation.")
	}
	for _, v := range validInfoTypes {
		if infoType == v {
			return nil
		}
	}
	return errors.New("I can tell you about the requirements, materials, location, preparation, schedule, instructor, syllabus, or homework for your class. What would you like to know?")
}

func (ClassInfoTool) Execute(_ context.Context, args map[string]any, cc *CallContext) (*Result, error) {
	infoType := stringArg(args, "infoType")

	className := stringArg(args, "className")
	if className == "" && cc.Session.Student != nil {
		className = cc.Session.Student.ClassName
	}
	if className == "" {
		className = "your class"
	}

	info, ok := classCatalog[className]
	if !ok {
		info = genericClassInfo(className)
	}

	var text string
	detail := map[string]any{}
	switch infoType {
	case "name":
		text = fmt.Sprintf("The name of the class is: %s", info.Name)
		detail["name"] = info.Name
	case "description":
		text = fmt.Sprintf("The description of the class is: %s", info.Description)
		detail["description"] = info.Description
	case "requirements":
		text = fmt.Sprintf("For %s, the requirements are: %s", className, info.Requirements)
		detail["requirements"] = info.Requirements
	case "materials":
		text = fmt.Sprintf("For %s, you'll need: %s", className, info.Materials)
		detail["materials"] = info.Materials
	case "location":
		text = fmt.Sprintf("%s will be held at: %s", className, info.Location)
		detail["location"] = info.Location
	case "preparation":
		text = fmt.Sprintf("To prepare for %s: %s", className, info.Preparation)
		detail["preparation"] = info.Preparation
	case "schedule":
		text = fmt.Sprintf("%s meets: %s", className, info.Schedule)
		detail["schedule"] = info.Schedule
	case "instructor":
		text = fmt.Sprintf("Your %s instructor is: %s", className, info.Instructor)
		detail["instructor"] = info.Instructor
	case "syllabus":
		text = fmt.Sprintf("The %s syllabus covers: %s", className, info.Syllabus)
		detail["syllabus"] = info.Syllabus
	case "homework":
		text = fmt.Sprintf("For %s homework: %s", className, info.Homework)
		detail["homework"] = info.Homework
	case "all":
		text = fmt.Sprintf("Here's complete information for %s: Location: %s. Materials needed: %s. Schedule: %s. Instructor: %s.",
			className, info.Location, info.Materials, info.Schedule, info.Instructor)
		detail["name"] = info.Name
		detail["location"] = info.Location
		detail["materials"] = info.Materials
		detail["schedule"] = info.Schedule
		detail["instructor"] = info.Instructor
	}

	return &Result{
		Success:      true,
		ResponseText: text,
		DetailedInfo: detail,
	}, nil
}

func (ClassInfoTool) FallbackText() string {
	return "I'm having trouble pulling up those class details right now, but I'll make sure that information is sent to you after this call."
}

// Compile-time interface check.
var _ Tool = ClassInfoTool{}
