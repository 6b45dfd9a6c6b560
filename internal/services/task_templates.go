package services

// TaskTemplate is a canned task title with its short brief.
type TaskTemplate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

var positionTaskTemplates = map[string][]TaskTemplate{
	"产品经理": {
		{"撰写产品需求文档(PRD)", "针对一个功能模块撰写完整的PRD文档"},
		{"设计产品原型", "使用工具设计一个功能的产品原型"},
		{"用户调研分析", "进行用户调研并输出分析报告"},
		{"竞品分析报告", "深度分析3个竞品的功能和策略"},
	},
	"算法工程师": {
		{"算法设计题", "选择一个常见算法问题（如两数之和、最长递增子序列或Dijkstra算法），编写一份结构清晰、逻辑严谨的技术文档，内容包括问题定义、算法思路、步骤拆解、复杂度分析和代码实现说明。要求语言简洁准确，避免歧义，使他人能轻松理解你的解决方案。"},
		{"解读顶会论文", "选择一篇计算机科学领域的顶会论文（如NeurIPS、ICML、ICLR等），深入阅读并撰写解读报告，包括论文背景、核心贡献、方法细节、实验结果和你的思考。要求理解论文的创新点和局限性。"},
		{"算法优化实践", "优化一个现有算法的性能"},
		{"技术方案设计", "设计一个技术方案的完整架构"},
	},
	"运营": {
		{"活动方案设计", "设计一个小型促销活动方案"},
		{"文案创作", "撰写商品详情页文案"},
		{"数据分析报告", "基于数据输出运营分析报告"},
		{"用户增长策略", "设计一个用户拉新策略方案"},
	},
	"Java开发工程师": {
		{"Spring Boot项目搭建", "搭建一个Spring Boot项目并实现基础功能"},
		{"微服务架构设计", "设计一个微服务架构方案"},
		{"数据库优化实践", "对现有数据库进行优化"},
		{"API接口设计", "设计一套RESTful API接口"},
	},
	"Python开发工程师": {
		{"Django/FastAPI项目开发", "使用Django或FastAPI开发一个Web应用"},
		{"数据处理与分析", "使用pandas处理数据并进行分析"},
		{"爬虫项目实践", "开发一个数据爬虫项目"},
		{"自动化测试", "编写自动化测试脚本"},
	},
	"前端开发工程师": {
		{"React/Vue项目搭建", "搭建一个React或Vue项目"},
		{"组件库开发", "开发一套可复用的组件库"},
		{"性能优化实践", "对前端项目进行性能优化"},
		{"响应式设计实现", "实现移动端适配"},
	},
	"Android开发工程师": {
		{"Android项目开发", "开发一个Android应用"},
		{"Material Design实现", "使用Material Design设计规范"},
		{"性能优化", "优化应用启动速度和内存使用"},
		{"架构模式实践", "使用MVP或MVVM架构"},
	},
	"iOS开发工程师": {
		{"iOS项目开发", "开发一个iOS应用"},
		{"SwiftUI实践", "使用SwiftUI构建界面"},
		{"性能优化", "优化应用性能"},
		{"架构设计", "设计应用架构"},
	},
	"测试工程师": {
		{"测试用例设计", "设计完整的测试用例"},
		{"自动化测试框架搭建", "搭建自动化测试框架"},
		{"性能测试实践", "进行性能测试并输出报告"},
		{"测试工具使用", "熟练使用常用测试工具"},
	},
	"运维工程师": {
		{"服务器配置管理", "配置和管理服务器"},
		{"容器化部署", "使用Docker进行容器化部署"},
		{"CI/CD流程搭建", "搭建持续集成和部署流程"},
		{"监控系统搭建", "搭建监控和告警系统"},
	},
}

// TemplatesFor returns the canned templates of a known position.
func TemplatesFor(position string) ([]TaskTemplate, bool) {
	t, ok := positionTaskTemplates[position]
	return t, ok
}

// KnownPositions lists positions with canned templates.
func KnownPositions() []string {
	out := make([]string, 0, len(positionTaskTemplates))
	for p := range positionTaskTemplates {
		out = append(out, p)
	}
	return out
}
