package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcosum/arcobot/internal/models"
)

// VendorPhoneSuministros receives industrial supplies requests.
const VendorPhoneSuministros = "+52 222 114 8841"

const (
	productLaminaLisa        = "lamina_lisa"
	productLaminaEstructural = "lamina_estructural"
	productExtractores       = "extractores"
	productPoliacrilica      = "poliacrilica"
	productVigasTrabes       = "vigas_trabes"
)

// supplyProducts maps the menu digit to the stored product key.
var supplyProducts = map[int]string{
	1: productLaminaLisa,
	2: productLaminaEstructural,
	3: productExtractores,
	4: productPoliacrilica,
	5: productVigasTrabes,
}

var supplyProductNames = map[string]string{
	productLaminaLisa:        "Lámina Lisa para Arcotecho",
	productLaminaEstructural: "Lámina Estructural a Medida",
	productExtractores:       "Extractores Atmosféricos",
	productPoliacrilica:      "Lámina Poliacrílica",
	productVigasTrabes:       "Vigas y Trabes",
}

const supplyProductMenu = "📝 *Paso 2 de 6:* ¿Qué producto de ARCOSUM SUMINISTROS necesitas?\n\n" +
	"1️⃣ Lámina Lisa para Arcotecho (Pintro, Zintro Alum)\n" +
	"2️⃣ Lámina Estructural a Medida (R-72, R-101)\n" +
	"3️⃣ Extractores Atmosféricos\n" +
	"4️⃣ Lámina Poliacrílica para Franjas de Luz\n" +
	"5️⃣ Vigas y Trabes (IPR, HSS)\n\n" +
	"Responde con: 1, 2, 3, 4 o 5"

// specChoice accepts one of the offered variants with loose matching.
func specChoice(input string, variants map[string]string) (string, bool) {
	lower := strings.ToLower(input)
	for needle, label := range variants {
		if strings.Contains(strings.ReplaceAll(lower, "-", ""), needle) {
			return label, true
		}
	}
	return "", false
}

// SuministrosForm is the industrial supplies funnel. The specification,
// quantity and length questions change shape with the chosen product.
func SuministrosForm() *FormDefinition {
	return &FormDefinition{
		Division:      models.DivisionSuministros,
		LeadType:      models.LeadTypeSuministrosForm,
		LeadScore:     8,
		VendorPhone:   VendorPhoneSuministros,
		ShowMenuAfter: true,
		Intro:         "🏢 *FORMULARIO SUMINISTROS* 📋\n\nTe ayudaré a procesar tu solicitud de suministros industriales.",
		Fields: []FieldSpec{
			{
				Name: "nombre",
				Prompt: func(s *FormSession) string {
					return "📝 *Paso 1 de 6:* ¿Cuál es tu nombre completo?\n\n(Formato: Nombre Apellido)"
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.FullName(input)
				},
				Invalid: func(s *FormSession) string {
					return "❌ Por favor ingresa nombre y apellido válidos\n\nFormato: Juan Pérez"
				},
			},
			{
				Name: "producto",
				Prompt: func(s *FormSession) string {
					return fmt.Sprintf("✅ Gracias, %s!\n\n%s", firstName(s), supplyProductMenu)
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					choice, ok := v.MenuChoice(input, 5)
					if !ok {
						return "", false
					}
					return supplyProducts[choice], true
				},
				Invalid: func(s *FormSession) string {
					return "❌ Opción no válida.\n\nResponde con: 1, 2, 3, 4 o 5"
				},
			},
			{
				Name: "especificacion",
				SkipIf: func(s *FormSession) bool {
					p := s.Value("producto")
					return p == productExtractores || p == productPoliacrilica
				},
				AutoFill: func(s *FormSession) string {
					if s.Value("producto") == productPoliacrilica {
						return "25m x 3 pies"
					}
					return "Extractores Atmosféricos"
				},
				Prompt: func(s *FormSession) string {
					switch s.Value("producto") {
					case productLaminaEstructural:
						return "📝 *Paso 3 de 6:* ¿Qué perfil de lámina estructural necesitas?\n\nEscribe: R-72 o R-101"
					case productVigasTrabes:
						return "📝 *Paso 3 de 6:* ¿Qué perfil de viga necesitas?\n\nEscribe: IPR o HSS"
					default:
						return "📝 *Paso 3 de 6:* ¿Qué tipo de lámina lisa?\n\nEscribe: Pintro o Zintro Alum"
					}
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					switch s.Value("producto") {
					case productLaminaEstructural:
						return specChoice(input, map[string]string{"r72": "R-72", "r101": "R-101"})
					case productVigasTrabes:
						return specChoice(input, map[string]string{"ipr": "IPR", "hss": "HSS"})
					default:
						value, ok := v.SheetType(ctx, input)
						return sheetDisplay(value), ok
					}
				},
				Invalid: func(s *FormSession) string {
					switch s.Value("producto") {
					case productLaminaEstructural:
						return "❌ Perfil no disponible.\n\nEscribe: R-72 o R-101"
					case productVigasTrabes:
						return "❌ Perfil no disponible.\n\nEscribe: IPR o HSS"
					default:
						return "❌ No entendí el tipo de lámina.\n\nEscribe: Pintro o Zintro Alum"
					}
				},
			},
			{
				Name: "cantidad",
				Prompt: func(s *FormSession) string {
					switch s.Value("producto") {
					case productLaminaEstructural:
						return "📏 *MEDIDAS DE LÁMINA ESTRUCTURAL*\n\n¿Qué medidas necesitas? (ancho x alto con unidades)\n\nEjemplo: \"2 metros x 3 metros\" o \"6 pies x 9 pies\""
					case productLaminaLisa:
						return "⚖️ *CANTIDAD DE LÁMINA LISA*\n\n¿Qué cantidad necesitas?\n\nFormato: Ancho x Largo\nEjemplo: 3x30"
					case productPoliacrilica:
						return "📝 *LÁMINA POLIACRÍLICA PARA FRANJAS DE LUZ*\n\n📌 *Especificación:* Medida única: 25 metros x 3 pies de ancho\n\n¿Cuántos rollos necesitas?\n\n(Solo números, ejemplo: 5)"
					default:
						return "📦 *CANTIDAD REQUERIDA*\n\n¿Cuántas unidades necesitas?\n\n(Solo números, ejemplo: 5)"
					}
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					switch s.Value("producto") {
					case productLaminaEstructural:
						return v.MeasuredDimensions(ctx, input)
					case productLaminaLisa:
						return v.Quantity(ctx, input)
					default:
						return v.BareNumber(input)
					}
				},
				Invalid: func(s *FormSession) string {
					switch s.Value("producto") {
					case productLaminaEstructural:
						return "❌ No entendí las medidas.\n\nEjemplo: \"2 metros x 3 metros\" o \"6 pies x 9 pies\""
					case productLaminaLisa:
						return "❌ No entendí la cantidad.\n\nFormato: Ancho x Largo\nEjemplo: 3x30"
					default:
						return "❌ Por favor responde solo con números.\n\nEjemplo: 5"
					}
				},
			},
			{
				Name: "largo",
				SkipIf: func(s *FormSession) bool {
					return s.Value("producto") != productLaminaEstructural
				},
				Prompt: func(s *FormSession) string {
					return "📏 *LARGO DE LA LÁMINA*\n\n¿De qué largo necesitas la lámina?\n\nEjemplo: \"3 metros\" o \"10 pies\""
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.Length(ctx, input)
				},
				Invalid: func(s *FormSession) string {
					return "❌ No entendí el largo.\n\nEjemplo: \"3 metros\" o \"10 pies\""
				},
			},
		},
		Confirm: func(s *FormSession) string {
			var b strings.Builder
			b.WriteString("✅ *RESUMEN DE TU SOLICITUD*\n\n")
			fmt.Fprintf(&b, "👤 *Nombre:* %s\n", s.Value("nombre"))
			fmt.Fprintf(&b, "📦 *Producto:* %s\n", supplyProductNames[s.Value("producto")])
			fmt.Fprintf(&b, "📌 *Especificación:* %s\n", s.Value("especificacion"))
			fmt.Fprintf(&b, "⚖️ *Cantidad:* %s\n", s.Value("cantidad"))
			if s.Value("producto") == productLaminaEstructural {
				fmt.Fprintf(&b, "📏 *Largo:* %s\n", s.Value("largo"))
			}
			b.WriteString("\n¿Es correcto? Responde:\n✅ Sí, enviar\n❌ No, cancelar")
			return b.String()
		},
		Completion: func(s *FormSession) string {
			return fmt.Sprintf("✅ *¡Solicitud Enviada Correctamente!*\n\nTu solicitud de ARCOSUM SUMINISTROS ha sido registrada exitosamente y enviada al **Vendedor de ARCOSUM**.\n\n📞 *El Vendedor de ARCOSUM se pondrá en contacto contigo en las próximas 2 horas.*\n\nSi es urgente: %s\n\n*¡Gracias por confiar en ARCOSUM!* 🏭", VendorPhoneSuministros)
		},
		VendorNotice: func(s *FormSession) string {
			var b strings.Builder
			b.WriteString("🚨 *NUEVA SOLICITUD SUMINISTROS*\n\n")
			fmt.Fprintf(&b, "📱 *Cliente:* %s\n", s.Phone)
			fmt.Fprintf(&b, "👤 *Nombre:* %s\n\n", s.Value("nombre"))
			fmt.Fprintf(&b, "📦 *Producto:* %s\n", supplyProductNames[s.Value("producto")])
			fmt.Fprintf(&b, "📌 *Especificación:* %s\n", s.Value("especificacion"))
			fmt.Fprintf(&b, "⚖️ *Cantidad:* %s\n", s.Value("cantidad"))
			if s.Value("producto") == productLaminaEstructural {
				fmt.Fprintf(&b, "📏 *Largo:* %s\n", s.Value("largo"))
			}
			b.WriteString("\n⏰ *Contactar en los próximos 30 minutos*")
			return b.String()
		},
		Summary: func(s *FormSession) string {
			return fmt.Sprintf("Solicitud de suministros: %s (%s), cantidad %s",
				supplyProductNames[s.Value("producto")], s.Value("especificacion"), s.Value("cantidad"))
		},
	}
}
